package inventory

import (
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/safar/go-shop-orders/internal/apperr"
	"github.com/safar/go-shop-orders/internal/models"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// podCheck validates a non-empty submitted value for one field type.
type podCheck func(field models.PODField, value string) bool

var podChecks = map[string]podCheck{
	"text":     func(models.PODField, string) bool { return true },
	"textarea": func(models.PODField, string) bool { return true },
	"number": func(_ models.PODField, v string) bool {
		_, err := strconv.ParseFloat(v, 64)
		return err == nil
	},
	"email": func(_ models.PODField, v string) bool {
		_, err := mail.ParseAddress(v)
		return err == nil
	},
	"url":      isURL,
	"image":    isURL,
	"file":     isURL,
	"select":   inOptions,
	"radio":    inOptions,
	"dropdown": inOptions,
	"checkbox": func(_ models.PODField, v string) bool {
		_, err := strconv.ParseBool(v)
		return err == nil
	},
	"color": func(_ models.PODField, v string) bool { return hexColor.MatchString(v) },
}

func isURL(_ models.PODField, v string) bool {
	u, err := url.Parse(v)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func inOptions(f models.PODField, v string) bool {
	if len(f.Options) == 0 {
		return true
	}
	for _, opt := range f.Options {
		if opt == v {
			return true
		}
	}
	return false
}

// ValidatePOD checks submitted custom inputs against the product's field
// schema. Required fields must be present and non-blank; any supplied value
// must fit its field type. Unknown types accept any value.
func ValidatePOD(productName string, fields models.PODFields, data models.PODData) error {
	for _, f := range fields {
		label := f.Label
		if label == "" {
			label = f.Name
		}

		raw, _ := data.Get(f.Name)
		value := strings.TrimSpace(raw)
		if value == "" {
			if f.Required {
				return apperr.Newf(apperr.KindPODValidation, apperr.CodePODFieldMissing,
					"%s is required for %s", label, productName)
			}
			continue
		}

		check, ok := podChecks[strings.ToLower(f.Type)]
		if ok && !check(f, value) {
			return apperr.Newf(apperr.KindPODValidation, apperr.CodePODFieldInvalid,
				"Invalid value for %s on %s", label, productName)
		}
	}
	return nil
}
