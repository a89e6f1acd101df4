// Package schema builds and validates the canonical plate and well records
// before they reach the store, and decodes stored documents into typed
// records.
//
// Validation here is the client-side layer. The store enforces its own
// schema on insert and reports *store.SchemaViolationError, which is a
// different error from *ValidationError.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jacentio/ffcs/store"
)

// ErrValidation is wrapped by every *ValidationError.
var ErrValidation = errors.New("ffcs: invalid input")

// ValidationError names the input field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ffcs: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidationField returns the offending field. store.KindOf uses it to
// classify the error.
func (e *ValidationError) ValidationField() string { return e.Field }

// Invalid returns a *ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DefaultPlateType is used when a plate is registered without a type.
const DefaultPlateType = "SwissCl"

// Soak, cryo and redesolve status values.
const (
	StatusPending  = "pending"
	StatusExported = "exported"
	StatusDone     = "done"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	if err := validate.RegisterValidation("plateid", validatePlateID); err != nil {
		panic(err)
	}
}

// validatePlateID accepts plate ids that parse as integers.
func validatePlateID(fl validator.FieldLevel) bool {
	_, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
	return err == nil
}

// PlateInput carries the caller-supplied fields of a plate.
type PlateInput struct {
	UserAccount string     `json:"userAccount" validate:"required"`
	CampaignID  string     `json:"campaignId" validate:"required"`
	PlateID     string     `json:"plateId" validate:"required,plateid"`
	DropVolume  float64    `json:"dropVolume"`
	PlateType   string     `json:"plateType,omitempty"`
	CreatedOn   *time.Time `json:"createdOn,omitempty"`
}

// WellInput carries the caller-supplied fields of a well. X and Y are pixel
// coordinates; XEcho and YEcho are physical coordinates on the Echo.
type WellInput struct {
	UserAccount string  `json:"userAccount" validate:"required"`
	CampaignID  string  `json:"campaignId" validate:"required"`
	PlateID     string  `json:"plateId" validate:"required"`
	Well        string  `json:"well" validate:"required"`
	WellEcho    string  `json:"wellEcho" validate:"required"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	XEcho       float64 `json:"xEcho"`
	YEcho       float64 `json:"yEcho"`
}

// BuildPlateRecord validates in and returns the plate document with every
// lifecycle flag at its initial value. createdOn defaults to now.
func BuildPlateRecord(in PlateInput, now time.Time) (store.Doc, error) {
	if err := Check(in); err != nil {
		return nil, err
	}
	plateType := in.PlateType
	if plateType == "" {
		plateType = DefaultPlateType
	}
	createdOn := now
	if in.CreatedOn != nil {
		createdOn = *in.CreatedOn
	}
	return store.Doc{
		"userAccount":        in.UserAccount,
		"plateId":            in.PlateID,
		"campaignId":         in.CampaignID,
		"plateType":          plateType,
		"dropVolume":         in.DropVolume,
		"batchId":            nil,
		"createdOn":          createdOn.UTC(),
		"lastImaged":         nil,
		"soakPlacesSelected": false,
		"soakStatus":         nil,
		"soakExportTime":     nil,
		"soakTransferTime":   nil,
		"cryoProtection":     false,
		"redesolveApplied":   false,
	}, nil
}

// BuildWellRecord validates in and returns the well document with all four
// sub-lifecycles at their initial state.
func BuildWellRecord(in WellInput) (store.Doc, error) {
	if err := Check(in); err != nil {
		return nil, err
	}
	doc := store.Doc{
		"userAccount": in.UserAccount,
		"campaignId":  in.CampaignID,
		"plateId":     in.PlateID,
		"well":        in.Well,
		"wellEcho":    in.WellEcho,
		"x":           int64(in.X),
		"y":           int64(in.Y),
		"xEcho":       in.XEcho,
		"yEcho":       in.YEcho,

		"libraryAssigned":  false,
		"solventTest":      false,
		"cryoProtection":   false,
		"redesolveApplied": false,
		"fished":           false,
		"exportedToXls":    false,
	}
	for _, field := range wellNullFields {
		doc[field] = nil
	}
	return doc, nil
}

// wellNullFields start out null on every new well.
var wellNullFields = []string{
	"libraryName", "libraryBarcode", "libraryId", "sourceWell", "smiles",
	"compoundCode", "libraryConcentration", "solventVolume",
	"ligandTransferVolume", "ligandConcentration",

	"soakStatus", "soakExportTime", "soakTransferTime", "soakTransferStatus",

	"cryoDesiredConcentration", "cryoTransferVolume", "cryoSourceWell",
	"cryoStatus", "cryoExportTime", "cryoTransferTime", "cryoName", "cryoBarcode",

	"redesolveName", "redesolveBarcode", "redesolveSourceWell",
	"redesolveTransferVolume", "redesolveStatus", "redesolveExportTime",

	"shifterComment", "shifterXtalId", "shifterTimeOfArrival",
	"shifterTimeOfDeparture", "shifterDuration", "puckBarcode", "puckPosition",
	"pinBarcode", "puckType", "xtalName", "soakDuration", "notes",
}

// Check validates any struct carrying validate tags and converts the first
// failure into a *ValidationError.
func Check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "input", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "cannot be empty"
	case "plateid":
		return "must contain only numbers"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag()
}
