// File: types.go
package main

// CodeResponse is returned by /api/captcha/code
type CodeResponse struct {
	Code string `json:"code"`
}

// StartResponse is returned by /api/captcha/start
type StartResponse struct {
	UUID  string `json:"uuid"`
	Code  string `json:"code"`
	Image string `json:"image"` // data:image/jpeg;base64,...
}

// RenderRequest is the JSON body for /api/captcha/render.
// Omitted fields fall back to the configured defaults.
type RenderRequest struct {
	Code   string `json:"code"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
	Shear  *bool  `json:"shear"`
}
