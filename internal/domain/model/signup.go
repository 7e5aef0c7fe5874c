package model

// ApplicantSignup is the body for applicant account creation.
type ApplicantSignup struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HRSignup is the body for HR account creation.
type HRSignup struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Company  string `json:"company,omitempty"`
}

// OTPVerification exchanges a one-time code for account activation.
type OTPVerification struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// OTPResend re-triggers code delivery. Phone is only used by the applicant flow.
type OTPResend struct {
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}
