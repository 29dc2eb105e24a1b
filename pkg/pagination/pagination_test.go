package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(q string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/appointments"+q, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(contextWithQuery(""))
	if p.Limit != DefaultLimit {
		t.Errorf("expected limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(contextWithQuery("?limit=50&offset=10"))
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("expected 50/10, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	p := FromContext(contextWithQuery("?limit=500&offset=-5"))
	if p.Limit != MaxLimit {
		t.Errorf("expected limit %d, got %d", MaxLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}

	p = FromContext(contextWithQuery("?limit=abc"))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit for garbage input, got %d", p.Limit)
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]string{"a", "b"}, 10, 2, 0)
	if !r.HasMore {
		t.Error("expected HasMore")
	}
	if r.NextOffset == nil || *r.NextOffset != 2 {
		t.Errorf("expected next offset 2, got %v", r.NextOffset)
	}

	last := NewResponse([]string{"j"}, 10, 2, 8)
	if last.HasMore || last.NextOffset != nil {
		t.Errorf("expected last page, got %+v", last)
	}
}

func TestParams_Navigation(t *testing.T) {
	tests := []struct {
		p        Params
		total    int
		hasNext  bool
		hasPrev  bool
		prevOffs int
	}{
		{Params{Limit: 20, Offset: 0}, 50, true, false, 0},
		{Params{Limit: 20, Offset: 20}, 50, true, true, 0},
		{Params{Limit: 20, Offset: 40}, 50, false, true, 20},
		{Params{Limit: 20, Offset: 0}, 0, false, false, 0},
	}
	for _, tt := range tests {
		if got := tt.p.HasNext(tt.total); got != tt.hasNext {
			t.Errorf("%+v HasNext(%d) = %v", tt.p, tt.total, got)
		}
		if got := tt.p.HasPrevious(); got != tt.hasPrev {
			t.Errorf("%+v HasPrevious() = %v", tt.p, got)
		}
		if got := tt.p.PreviousOffset(); got != tt.prevOffs {
			t.Errorf("%+v PreviousOffset() = %d", tt.p, got)
		}
	}
}
