package handler

import "testing"

func TestSupersededAvatarKey(t *testing.T) {
	tests := []struct {
		name   string
		oldKey string
		newKey string
		want   string
	}{
		{"no previous avatar", "", "avatars/doc-1/avatar.png", ""},
		{"key unchanged", "avatars/doc-1/avatar.png", "avatars/doc-1/avatar.png", ""},
		{"extension changed", "avatars/doc-1/avatar.png", "avatars/doc-1/avatar.jpg", "avatars/doc-1/avatar.png"},
		{"avatar removed", "avatars/doc-1/avatar.png", "", "avatars/doc-1/avatar.png"},
	}

	for _, tc := range tests {
		if got := supersededAvatarKey(tc.oldKey, tc.newKey); got != tc.want {
			t.Errorf("%s: supersededAvatarKey(%q, %q) = %q, want %q", tc.name, tc.oldKey, tc.newKey, got, tc.want)
		}
	}
}
