package store

import (
	"fmt"
	"math"
	"time"
)

// Logical collection names.
const (
	Plates            = "plates"
	Wells             = "wells"
	Notifications     = "notifications"
	Libraries         = "libraries"
	CampaignLibraries = "campaign_libraries"
)

// FieldType is the BSON-level type a schema field must carry.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeTime   FieldType = "date"
)

// Field is a required field of a collection schema.
type Field struct {
	Name string
	Type FieldType
}

// Schema lists the fields every document of a collection must carry.
type Schema struct {
	Required []Field
}

// Registry holds the schema of every logical collection.
type Registry struct {
	schemas map[string]Schema
}

// NewRegistry creates a Registry with the laboratory collection schemas.
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[string]Schema)}
	r.Register(Plates, Schema{Required: []Field{
		{"userAccount", TypeString},
		{"campaignId", TypeString},
		{"plateId", TypeString},
		{"dropVolume", TypeNumber},
		{"createdOn", TypeTime},
		{"soakPlacesSelected", TypeBool},
		{"cryoProtection", TypeBool},
		{"redesolveApplied", TypeBool},
	}})
	r.Register(Wells, Schema{Required: []Field{
		{"userAccount", TypeString},
		{"campaignId", TypeString},
		{"plateId", TypeString},
		{"well", TypeString},
		{"wellEcho", TypeString},
		{"x", TypeInt},
		{"y", TypeInt},
		{"xEcho", TypeNumber},
		{"yEcho", TypeNumber},
		{"libraryAssigned", TypeBool},
		{"cryoProtection", TypeBool},
		{"redesolveApplied", TypeBool},
		{"fished", TypeBool},
	}})
	r.Register(Notifications, Schema{Required: []Field{
		{"userAccount", TypeString},
		{"campaignId", TypeString},
		{"createdOn", TypeTime},
		{"notification_type", TypeString},
	}})
	r.Register(Libraries, Schema{Required: []Field{
		{"libraryBarcode", TypeString},
	}})
	r.Register(CampaignLibraries, Schema{Required: []Field{
		{"userAccount", TypeString},
		{"campaignId", TypeString},
	}})
	return r
}

// Register sets the schema for a logical collection.
func (r *Registry) Register(logical string, s Schema) {
	r.schemas[logical] = s
}

// SchemaOf returns the schema for a logical collection.
func (r *Registry) SchemaOf(logical string) (Schema, bool) {
	s, ok := r.schemas[logical]
	return s, ok
}

// Check reports the first required field that is missing or mistyped.
// The returned error names the field; callers wrap it in a SchemaViolationError.
func (s Schema) Check(doc Doc) (string, error) {
	for _, f := range s.Required {
		v, ok := doc[f.Name]
		if !ok || v == nil {
			return f.Name, fmt.Errorf("required field %q is missing", f.Name)
		}
		if !hasType(v, f.Type) {
			return f.Name, fmt.Errorf("field %q must be %s, got %T", f.Name, f.Type, v)
		}
	}
	return "", nil
}

func hasType(v any, t FieldType) bool {
	switch t {
	case TypeString:
		s, ok := v.(string)
		return ok && s != ""
	case TypeInt:
		switch n := v.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case TypeNumber:
		switch v.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeTime:
		switch v.(type) {
		case time.Time:
			return true
		case string:
			_, err := parseTime(v.(string))
			return err == nil
		}
		return false
	}
	return false
}
