package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "whbot/pkg/logx"
)

func TestFetchPage(t *testing.T) {
	t.Parallel()
	var gotQuery, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [{"urlKey": "abc123", "houseNumber": 12, "houseNumberAddition": "A", "netRent": "950.50"}],
			"_metadata": {"page": 0, "page_count": 2}
		}`))
	}))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL + "/api/listings?lang=en", PageSize: 100}, nil, logx.Nop())
	page, err := c.FetchPage(context.Background(), 0)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if gotQuery != "lang=en&limit=100&page=0" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotAccept != "application/json" {
		t.Fatalf("Accept = %q", gotAccept)
	}
	if !page.HasMore {
		t.Fatal("HasMore = false, want true on page 0 of 2")
	}
	if len(page.Items) != 1 || page.Items[0].URLKey != "abc123" {
		t.Fatalf("items = %+v", page.Items)
	}
	l := page.Items[0].ToListing(Mapping{BaseURL: "https://x/"})
	if l.HouseNumber != "12A" {
		t.Fatalf("HouseNumber = %q, want 12A", l.HouseNumber)
	}
	if l.Price == nil || *l.Price != 950.5 {
		t.Fatalf("Price = %v, want 950.5", l.Price)
	}
}

func TestFetchPageHasMore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		page int
		body string
		want bool
	}{
		{name: "last page", page: 1, body: `{"data":[{"urlKey":"a"}],"_metadata":{"page":1,"page_count":2}}`, want: false},
		{name: "empty data", body: `{"data":[],"_metadata":{"page":0,"page_count":5}}`, want: false},
		{name: "empty data mid run", page: 2, body: `{"data":[],"_metadata":{"page":2,"page_count":9}}`, want: false},
		{name: "null data mid run", page: 2, body: `{"data":null,"_metadata":{"page":2,"page_count":9}}`, want: false},
		{name: "missing data", page: 3, body: `{"_metadata":{"page":3,"page_count":9}}`, want: false},
		{name: "no metadata", body: `{"data":[{"urlKey":"a"}]}`, want: false},
		{name: "middle", page: 2, body: `{"data":[{"urlKey":"a"}],"_metadata":{"page":2,"page_count":5}}`, want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			page, err := New(Config{APIURL: srv.URL}, nil, logx.Nop()).FetchPage(context.Background(), tt.page)
			if err != nil {
				t.Fatalf("FetchPage: %v", err)
			}
			if page.HasMore != tt.want {
				t.Fatalf("HasMore = %v, want %v", page.HasMore, tt.want)
			}
		})
	}
}

func TestFetchPageErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{not json`))
			return
		}
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := New(Config{APIURL: srv.URL}, nil, logx.Nop())

	_, err := c.FetchPage(context.Background(), 0)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("err = %v, want StatusError 502", err)
	}
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("errors.Is(err, ErrStatus) = false for %v", err)
	}

	if _, err := c.FetchPage(context.Background(), 1); err == nil {
		t.Fatal("expected decode error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	if _, err := c.FetchPage(ctx, 0); err == nil {
		t.Fatal("expected error for expired context")
	}
}

func TestToListingMissingAndLooseFields(t *testing.T) {
	t.Parallel()
	m := Mapping{BaseURL: "https://example.org/l/", ImageBaseURL: "https://cdn.example.org"}

	full := RawListing{
		URLKey:              "abc123",
		PostalCode:          "3511AB",
		City:                "Utrecht",
		Street:              "Oudegracht",
		HouseNumber:         "5",
		HouseNumberAddition: "bis",
		PublicationDate:     "2026-03-01T10:00:00+01:00",
		ClosingDate:         "2026-03-08T10:00:00Z",
		Pictures:            []rawPicture{{URI: "/img/1.jpg"}, {URI: "/img/2.jpg"}},
	}
	l := full.ToListing(m)
	if l.FullURL != "https://example.org/l/abc123" {
		t.Fatalf("FullURL = %q", l.FullURL)
	}
	if l.ImageURL != "https://cdn.example.org/img/1.jpg" {
		t.Fatalf("ImageURL = %q", l.ImageURL)
	}
	if l.HouseNumber != "5bis" {
		t.Fatalf("HouseNumber = %q", l.HouseNumber)
	}
	if l.PublicationDate == nil || !l.PublicationDate.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("PublicationDate = %v", l.PublicationDate)
	}

	empty := RawListing{URLKey: "k", PublicationDate: "yesterday", Pictures: []rawPicture{{URI: ""}}}
	l = empty.ToListing(m)
	if l.Price != nil || l.PublicationDate != nil || l.ClosingDate != nil {
		t.Fatalf("expected nil optionals, got %+v", l)
	}
	if l.ImageURL != "" || l.HouseNumber != "" {
		t.Fatalf("expected empty strings, got image=%q house=%q", l.ImageURL, l.HouseNumber)
	}
}
