package syncverify

type VerifyPayload struct {
	AutoFix bool `json:"auto_fix"`
}
