package model

import (
	"errors"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Field errors keyed by JSON field name, as shown inline next to profile inputs.
type FieldErrors map[string]string

// profileForm is the validation view of an ApplicantProfile.
type profileForm struct {
	FullName          string      `json:"fullName"          validate:"notblank"`
	Email             string      `json:"email"             validate:"notblank,email"`
	Phone             string      `json:"phone"             validate:"notblank"`
	CurrentLocation   string      `json:"currentLocation"   validate:"notblank"`
	PreferredLocation string      `json:"preferredLocation" validate:"notblank"`
	ResumeFileName    string      `json:"resumeFileName"    validate:"required"`
	ExperienceLevel   string      `json:"experienceLevel"   validate:"required,oneof=fresher experienced"`
	ServingNotice     string      `json:"servingNotice"     validate:"required_if=ExperienceLevel experienced"`
	NoticePeriod      string      `json:"noticePeriod"      validate:"required_if=ExperienceLevel experienced"`
	LastWorkingDay    string      `json:"lastWorkingDay"`
	LinkedinURL       string      `json:"linkedinUrl"       validate:"omitempty,url"`
	PortfolioURL      string      `json:"portfolioUrl"      validate:"omitempty,url"`
	Education         []Education `json:"education"`
}

var fieldMessages = map[string]string{
	"fullName":          "Full name is required",
	"email":             "Email is required",
	"phone":             "Phone is required",
	"currentLocation":   "Current location is required",
	"preferredLocation": "Preferred location is required",
	"resumeFileName":    "Resume is required",
	"experienceLevel":   "Select fresher or experienced",
	"servingNotice":     "Please select an option",
	"noticePeriod":      "Notice period is required",
	"lastWorkingDay":    "Last working day is required",
}

var tagMessages = map[string]string{
	"education_required": "At least one education entry with Degree and Institution is required",
	"tenth_required":     "Please add your 10th standard education details",
	"twelfth_required":   "Please add your 12th standard or Diploma education details",
}

var (
	profileValidatorOnce sync.Once
	profileValidator     *validator.Validate
)

func getProfileValidator() *validator.Validate {
	profileValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		v.RegisterStructValidation(validateProfileRules, profileForm{})
		profileValidator = v
	})
	return profileValidator
}

func validateProfileRules(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(profileForm)
	if !ok {
		return
	}

	switch {
	case !slices.ContainsFunc(f.Education, Education.Complete):
		sl.ReportError(f.Education, "education", "Education", "education_required", "")
	case !slices.ContainsFunc(f.Education, isTenthStandard):
		sl.ReportError(f.Education, "education", "Education", "tenth_required", "")
	case !slices.ContainsFunc(f.Education, isTwelfthOrDiploma):
		sl.ReportError(f.Education, "education", "Education", "twelfth_required", "")
	}

	if f.ExperienceLevel == ExperienceExperienced &&
		(f.ServingNotice == "yes" || f.NoticePeriod == NoticeImmediate) &&
		f.LastWorkingDay == "" {
		sl.ReportError(f.LastWorkingDay, "lastWorkingDay", "LastWorkingDay", "required", "")
	}
}

func degreeContains(e Education, needles ...string) bool {
	degree := strings.ToLower(e.Degree)
	for _, n := range needles {
		if strings.Contains(degree, n) {
			return true
		}
	}
	return false
}

func isTenthStandard(e Education) bool {
	return degreeContains(e, "10", "tenth", "ssc", "secondary")
}

func isTwelfthOrDiploma(e Education) bool {
	return degreeContains(e, "12", "twelfth", "hsc", "senior secondary", "diploma", "intermediate")
}

// ValidateProfileForm checks a profile the way the profile form does before it
// lets the applicant mark the profile complete. An empty map means valid.
func ValidateProfileForm(p ApplicantProfile) FieldErrors {
	form := profileForm{
		FullName:          p.FullName,
		Email:             p.Email,
		Phone:             p.Phone,
		CurrentLocation:   p.CurrentLocation,
		PreferredLocation: p.PreferredLocation,
		ResumeFileName:    p.ResumeFileName,
		ExperienceLevel:   p.ExperienceLevel,
		ServingNotice:     p.ServingNotice,
		NoticePeriod:      p.NoticePeriod,
		LastWorkingDay:    p.LastWorkingDay,
		LinkedinURL:       p.LinkedinURL,
		PortfolioURL:      p.PortfolioURL,
		Education:         p.Education,
	}

	out := FieldErrors{}
	err := getProfileValidator().Struct(form)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = messageFor(fe)
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "email":
		if fe.Value() != "" {
			return "Email must be a valid email address"
		}
	case "url":
		return fe.Field() + " must be a valid URL"
	}
	if msg, ok := fieldMessages[fe.Field()]; ok {
		return msg
	}
	return fe.Field() + " is invalid"
}
