package formutil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/autoenrol/internal/app/system/formutil"
	"github.com/dalemusser/autoenrol/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type input struct {
	Status string `json:"status"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"valid", `{"status":"enabled"}`, "enabled", false},
		{"empty body", ``, "", false},
		{"unknown field", `{"status":"enabled","extra":1}`, "", true},
		{"malformed", `{"status":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var in input
			err := formutil.DecodeJSON(httptest.NewRecorder(), r, &in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && in.Status != tt.want {
				t.Errorf("Status = %q, want %q", in.Status, tt.want)
			}
		})
	}
}

func TestObjectIDParam(t *testing.T) {
	id := primitive.NewObjectID()
	r := testutil.WithChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", id.Hex())

	got, err := formutil.ObjectIDParam(r, "id")
	if err != nil || got != id {
		t.Errorf("ObjectIDParam = %s, %v; want %s", got.Hex(), err, id.Hex())
	}

	r = testutil.WithChiURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "zzz")
	if _, err := formutil.ObjectIDParam(r, "id"); err == nil {
		t.Error("expected error for malformed id")
	}
}
