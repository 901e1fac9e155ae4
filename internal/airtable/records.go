package airtable

import (
	"fmt"
	"time"

	atapi "github.com/mehanizm/airtable"

	"sitter-link/internal/domain"
)

// stringField lee un campo de texto. Los lookups llegan como arreglos y se
// toma el primer valor.
func stringField(fields map[string]any, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}
		if s, ok := v[0].(string); ok {
			return s
		}
		return fmt.Sprint(v[0])
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toRequest(rec *atapi.Record) domain.BabysitterRequest {
	f := rec.Fields
	req := domain.BabysitterRequest{
		ID:                  rec.ID,
		ParentID:            stringField(f, fieldParentID),
		BabysitterID:        stringField(f, fieldBabysitter),
		BabysitterFirstName: stringField(f, fieldBabysitterFirstName),
		BabysitterMobile:    stringField(f, fieldBabysitterMobile),
		Date:                stringField(f, fieldDate),
		TimeRange:           stringField(f, fieldTimeRange),
		Notes:               stringField(f, fieldNotes),
		Status:              domain.ResponseStatus(stringField(f, fieldStatus)),
		Response:            stringField(f, fieldResponse),
	}
	if req.Status == "" {
		req.Status = domain.StatusPending
	}
	first := stringField(f, fieldParentFirstName)
	last := stringField(f, fieldParentLastName)
	if first != "" || last != "" {
		req.Parent = &domain.Parent{
			FirstName: first,
			LastName:  last,
			Email:     stringField(f, fieldParentEmail),
		}
	}
	return req
}

func requestFields(r domain.BabysitterRequest) map[string]any {
	fields := map[string]any{
		fieldParentID:   r.ParentID,
		fieldBabysitter: []string{r.BabysitterID},
		fieldDate:       r.Date,
		fieldTimeRange:  r.TimeRange,
		fieldStatus:     string(domain.StatusPending),
	}
	if r.Notes != "" {
		fields[fieldNotes] = r.Notes
	}
	if r.Parent != nil {
		fields[fieldParentFirstName] = r.Parent.FirstName
		fields[fieldParentLastName] = r.Parent.LastName
		fields[fieldParentEmail] = r.Parent.Email
	}
	return fields
}

func toBabysitter(rec *atapi.Record) domain.Babysitter {
	b := domain.Babysitter{
		ID:        rec.ID,
		ParentID:  stringField(rec.Fields, fieldParentID),
		FirstName: stringField(rec.Fields, fieldFirstName),
		LastName:  stringField(rec.Fields, fieldLastName),
		Mobile:    stringField(rec.Fields, fieldMobile),
	}
	if t, err := time.Parse(time.RFC3339, rec.CreatedTime); err == nil {
		b.CreatedAt = t
	}
	return b
}
