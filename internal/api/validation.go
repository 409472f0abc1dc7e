package api

import (
	"fmt"
	"regexp"
)

// Owner identity is a mobile number in E.164 form: optional +, then 8
// to 15 digits not starting with zero.
var mobilePattern = regexp.MustCompile(`^\+?[1-9][0-9]{7,14}$`)

func validateMobile(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !mobilePattern.MatchString(value) {
		return fmt.Errorf("invalid %s: must be an E.164 mobile number", field)
	}
	return nil
}

func validateCreateReminder(req CreateReminderRequest) error {
	if err := validateMobile("user_mobile", req.UserMobile); err != nil {
		return err
	}
	if req.DestinationMobile != "" {
		if err := validateMobile("destination_mobile", req.DestinationMobile); err != nil {
			return err
		}
	}
	if req.Title == "" {
		return fmt.Errorf("title is required")
	}
	if req.DueAt.IsZero() {
		return fmt.Errorf("due_at is required")
	}
	return nil
}

func validateUpdateReminder(req UpdateReminderRequest) error {
	if err := validateMobile("user_mobile", req.UserMobile); err != nil {
		return err
	}
	if req.DestinationMobile != nil {
		if err := validateMobile("destination_mobile", *req.DestinationMobile); err != nil {
			return err
		}
	}
	return nil
}
