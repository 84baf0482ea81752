package validation

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"asset-management-api/internal/model"
)

// Field length limits
const (
	MaxNameLength         = 255
	MaxSerialNumberLength = 128
	MaxDescriptionLength  = 2000
	MaxReasonLength       = 1000
)

var serialNumberRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)

// NormalizeSerialNumber trims and upper-cases a serial number.
func NormalizeSerialNumber(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}

// ValidateSerialNumber validates a serial number and returns its normalized form
func ValidateSerialNumber(serial string) (string, error) {
	normalized := NormalizeSerialNumber(serial)
	if normalized == "" {
		return "", fmt.Errorf("serial number is required")
	}
	if len(normalized) > MaxSerialNumberLength {
		return "", fmt.Errorf("serial number cannot exceed %d characters", MaxSerialNumberLength)
	}
	if !serialNumberRegex.MatchString(normalized) {
		return "", fmt.Errorf("invalid serial number format: %s", serial)
	}
	return normalized, nil
}

// ValidateName validates a required display name
func ValidateName(fieldName, name string) error {
	if err := ValidateRequired(fieldName, name); err != nil {
		return err
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%s cannot exceed %d characters", fieldName, MaxNameLength)
	}
	return nil
}

// ValidateEmail validates an email address
func ValidateEmail(address string) error {
	if _, err := mail.ParseAddress(address); err != nil {
		return fmt.Errorf("invalid email address: %s", address)
	}
	return nil
}

// ValidatePushEndpoint accepts only absolute https URLs on public hosts.
// Loopback, private, link-local, multicast and unspecified addresses and
// localhost names are rejected, since the server posts to the endpoint.
func ValidatePushEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if endpoint == "" || err != nil || u.Host == "" {
		return fmt.Errorf("endpoint must be an absolute https URL")
	}
	if u.Scheme != "https" {
		return fmt.Errorf("endpoint must use https")
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("endpoint host %q is not allowed", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
			ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
			ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
			return fmt.Errorf("endpoint host %q is not a public address", host)
		}
	}
	return nil
}

// ValidateRequired checks if a string field is not empty
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateAssetInput validates all required fields for creating or updating an asset
func ValidateAssetInput(asset *model.Asset) []string {
	var errors []string

	if err := ValidateName("name", asset.Name); err != nil {
		errors = append(errors, err.Error())
	}

	normalized, err := ValidateSerialNumber(asset.SerialNumber)
	if err != nil {
		errors = append(errors, err.Error())
	} else {
		asset.SerialNumber = normalized
	}

	if asset.State == "" {
		asset.State = model.AssetStateInStock
	} else if !asset.State.Valid() {
		errors = append(errors, fmt.Sprintf("invalid asset state: %s", asset.State))
	}

	if len(asset.Description) > MaxDescriptionLength {
		errors = append(errors, fmt.Sprintf("description cannot exceed %d characters", MaxDescriptionLength))
	}

	return errors
}

// ValidateAllocationWindow checks that any provided start/end time parses
// and that the window is not inverted.
func ValidateAllocationWindow(start, end string) []string {
	var errors []string

	startTime, startErr := ParseLooseDate(start)
	if strings.TrimSpace(start) != "" && startErr != nil {
		errors = append(errors, fmt.Sprintf("invalid start time: %s", start))
	}
	endTime, endErr := ParseLooseDate(end)
	if strings.TrimSpace(end) != "" && endErr != nil {
		errors = append(errors, fmt.Sprintf("invalid end time: %s", end))
	}

	if startErr == nil && endErr == nil && endTime.Before(startTime) {
		errors = append(errors, "end time must not be before start time")
	}

	return errors
}

// ValidateAllocationInput validates the fields of a new allocation request
func ValidateAllocationInput(allocation *model.Allocation) []string {
	var errors []string

	if allocation.Type == "" {
		allocation.Type = model.AllocationTypeTemporary
	} else if !allocation.Type.Valid() {
		errors = append(errors, fmt.Sprintf("invalid allocation type: %s", allocation.Type))
	}

	if allocation.Type.TransfersOwnership() && !allocation.AllocatedTo.Valid {
		errors = append(errors, "an Owner allocation requires a recipient")
	}

	errors = append(errors, ValidateAllocationWindow(allocation.StartTime, allocation.EndTime)...)

	if len(allocation.Purpose) > MaxDescriptionLength {
		errors = append(errors, fmt.Sprintf("purpose cannot exceed %d characters", MaxDescriptionLength))
	}

	return errors
}

// ValidateRejectionReason checks the optional reason given on rejection
func ValidateRejectionReason(reason string) error {
	if len(reason) > MaxReasonLength {
		return fmt.Errorf("rejection reason cannot exceed %d characters", MaxReasonLength)
	}
	return nil
}

// ValidatePurchaseInput validates the fields of a new purchase request
func ValidatePurchaseInput(purchase *model.Purchase) []string {
	var errors []string

	if err := ValidateRequired("asset description", purchase.AssetDescription); err != nil {
		errors = append(errors, err.Error())
	} else if len(purchase.AssetDescription) > MaxDescriptionLength {
		errors = append(errors, fmt.Sprintf("asset description cannot exceed %d characters", MaxDescriptionLength))
	}

	if purchase.Quantity == 0 {
		purchase.Quantity = 1
	} else if purchase.Quantity < 0 {
		errors = append(errors, "quantity must be positive")
	}

	return errors
}
