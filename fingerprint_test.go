package reqflow

import (
	"net/url"
	"testing"
)

func TestFingerprintMethodAndURL(t *testing.T) {
	req := &Request{Method: "GET", URL: "/users"}

	if got := Fingerprint(req); got != "get&/users" {
		t.Errorf("Expected 'get&/users', got '%s'", got)
	}
}

func TestFingerprintIgnoresValues(t *testing.T) {
	req1 := &Request{Method: "GET", URL: "/users", Params: Fields{{"page", 1}, {"size", 20}}}
	req2 := &Request{Method: "get", URL: "/users", Params: Fields{{"page", 7}, {"size", "all"}}}

	key1 := Fingerprint(req1)
	key2 := Fingerprint(req2)

	if key1 != key2 {
		t.Errorf("Same key names should give same fingerprint: %s != %s", key1, key2)
	}
	if key1 != "get&/users&page&size" {
		t.Errorf("Expected 'get&/users&page&size', got '%s'", key1)
	}
}

func TestFingerprintKeepsParamOrder(t *testing.T) {
	req1 := &Request{Method: "GET", URL: "/users", Params: Fields{{"page", 1}, {"size", 20}}}
	req2 := &Request{Method: "GET", URL: "/users", Params: Fields{{"size", 20}, {"page", 1}}}

	if Fingerprint(req1) == Fingerprint(req2) {
		t.Error("Different key order should give different fingerprints")
	}
}

func TestFingerprintParamsTakePrecedenceOverData(t *testing.T) {
	req := &Request{
		Method: "POST",
		URL:    "/users",
		Params: Fields{{"dry_run", true}},
		Data:   map[string]any{"name": "a"},
	}

	if got := Fingerprint(req); got != "post&/users&dry_run" {
		t.Errorf("Expected 'post&/users&dry_run', got '%s'", got)
	}

	// Present but empty params still win over data.
	req.Params = Fields{}
	if got := Fingerprint(req); got != "post&/users" {
		t.Errorf("Expected 'post&/users', got '%s'", got)
	}
}

func TestFingerprintDataKeys(t *testing.T) {
	type user struct {
		Name     string `json:"name"`
		Email    string `json:"email,omitempty"`
		Password string `json:"-"`
		Age      int
		internal string
	}

	tests := []struct {
		name string
		data any
		want string
	}{
		{"fields", Fields{{"b", 1}, {"a", 2}}, "post&/x&b&a"},
		{"map any", map[string]any{"b": 1, "a": 2}, "post&/x&a&b"},
		{"map string", map[string]string{"z": "1", "y": "2"}, "post&/x&y&z"},
		{"url values", url.Values{"q": {"1"}, "p": {"2"}}, "post&/x&p&q"},
		{"map int values", map[string]int{"k": 1}, "post&/x&k"},
		{"struct", user{Name: "n"}, "post&/x&name&email&Age"},
		{"struct pointer", &user{}, "post&/x&name&email&Age"},
		{"form data", NewFormData().Append("title", "t").AppendFile("file", "a.txt", nil), "post&/x&title&file"},
		{"bytes", []byte(`{"a":1}`), "post&/x"},
		{"string", "raw", "post&/x"},
		{"nil pointer", (*user)(nil), "post&/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Method: "POST", URL: "/x", Data: tt.data}
			if got := Fingerprint(req); got != tt.want {
				t.Errorf("Expected '%s', got '%s'", tt.want, got)
			}
		})
	}
}

func TestFingerprintDiffersByMethodAndURL(t *testing.T) {
	get := Fingerprint(&Request{Method: "GET", URL: "/users"})
	del := Fingerprint(&Request{Method: "DELETE", URL: "/users"})
	other := Fingerprint(&Request{Method: "GET", URL: "/groups"})

	if get == del {
		t.Errorf("Different methods should have different keys: %s == %s", get, del)
	}
	if get == other {
		t.Errorf("Different URLs should have different keys: %s == %s", get, other)
	}
}
