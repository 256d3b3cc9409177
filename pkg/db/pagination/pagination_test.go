package pagination

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	cursor := Cursor{ID: "1879968837172334592", CreatedAt: "2026-08-01T12:30:45.123456789Z"}
	token, err := EncodeCursor(cursor)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != cursor {
		t.Fatalf("expected %+v, got %+v", cursor, decoded)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "   ", "not-base64!!", "bm90LWpzb24"} {
		if _, err := DecodeCursor(token); err == nil {
			t.Fatalf("expected error for token %q", token)
		}
	}
}

func TestSizeDefaults(t *testing.T) {
	if got := (Pagination{}).Size(); got != DefaultPageSize {
		t.Fatalf("expected default size %d, got %d", DefaultPageSize, got)
	}
	if got := (Pagination{PageSize: -3}).Size(); got != DefaultPageSize {
		t.Fatalf("expected default size for negative, got %d", got)
	}
	if got := (Pagination{PageSize: 7}).Size(); got != 7 {
		t.Fatalf("expected size 7, got %d", got)
	}
}

func TestBuildCursorPageInfo(t *testing.T) {
	token := func(v int) string { return "t" }

	info := BuildCursorPageInfo([]int{1, 2}, 2, token)
	if info.HasMore || info.NextPageToken != "" {
		t.Fatalf("expected terminal page, got %+v", info)
	}

	info = BuildCursorPageInfo([]int{1, 2, 3}, 2, token)
	if !info.HasMore || info.NextPageToken == "" {
		t.Fatalf("expected next page, got %+v", info)
	}
}
