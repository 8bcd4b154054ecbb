package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewID returns a fresh 24-character hex identifier. Both storage backends use
// the same id format so clients never see which one is configured.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID reports whether id is a well-formed identifier.
func IsValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// UploaderRef points a Paper at the User who uploaded it.
//
// JSON encoding depends on resolution state: an unresolved reference is the
// raw id string, a resolved one is {"_id","username"}, and a reference whose
// user no longer exists (ID cleared by the store) is null.
type UploaderRef struct {
	ID       string
	Username string
}

type resolvedUploader struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

func (r UploaderRef) Resolved() bool {
	return r.ID != "" && r.Username != ""
}

func (r UploaderRef) MarshalJSON() ([]byte, error) {
	switch {
	case r.ID == "":
		return []byte("null"), nil
	case r.Username == "":
		return json.Marshal(r.ID)
	default:
		return json.Marshal(resolvedUploader{ID: r.ID, Username: r.Username})
	}
}

func (r *UploaderRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = UploaderRef{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = UploaderRef{ID: id}
		return nil
	}
	var obj resolvedUploader
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("uploadedBy must be an id or an object with _id: %w", err)
	}
	*r = UploaderRef{ID: obj.ID, Username: obj.Username}
	return nil
}

// Value stores only the referenced id.
func (r UploaderRef) Value() (driver.Value, error) {
	return r.ID, nil
}

func (r *UploaderRef) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = UploaderRef{}
	case string:
		*r = UploaderRef{ID: v}
	case []byte:
		*r = UploaderRef{ID: string(v)}
	default:
		return fmt.Errorf("unsupported uploaded_by value %T", src)
	}
	return nil
}
