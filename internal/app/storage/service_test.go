package storage

import "testing"

func TestAvatarKey(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
		wantErr     bool
	}{
		{"image/jpeg", "avatars/doc-1/avatar.jpg", false},
		{"image/png", "avatars/doc-1/avatar.png", false},
		{"image/webp", "avatars/doc-1/avatar.webp", false},
		{"image/gif", "", true},
		{"application/pdf", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		key, err := AvatarKey("doc-1", tc.contentType)
		if tc.wantErr {
			if err == nil {
				t.Errorf("AvatarKey(%q): expected error, got key %q", tc.contentType, key)
			}
			continue
		}
		if err != nil {
			t.Errorf("AvatarKey(%q): %v", tc.contentType, err)
			continue
		}
		if key != tc.want {
			t.Errorf("AvatarKey(%q) = %q, want %q", tc.contentType, key, tc.want)
		}
	}
}

func TestOwnsAvatarKey(t *testing.T) {
	if !OwnsAvatarKey("doc-1", "avatars/doc-1/avatar.png") {
		t.Error("doctor should own a key under their own prefix")
	}
	if OwnsAvatarKey("doc-1", "avatars/doc-2/avatar.png") {
		t.Error("doctor must not own another doctor's key")
	}
	if OwnsAvatarKey("doc-1", "avatars/doc-10/avatar.png") {
		t.Error("prefix match must not accept doctor IDs that merely share a prefix")
	}
	if OwnsAvatarKey("doc-1", "avatars/doc-1") {
		t.Error("the bare prefix without a file is not a valid avatar key")
	}
}
