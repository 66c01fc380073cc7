package application

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	params := DefaultArgon2idParams
	params.Memory = 1024
	params.Iterations = 1

	hash, err := CreatePasswordHash("s3cret-pass", params)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=2$") {
		t.Fatalf("unexpected encoding %q", hash)
	}

	other, err := CreatePasswordHash("s3cret-pass", params)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if other == hash {
		t.Fatal("expected distinct salts per hash")
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     error
	}{
		{name: "matching password", hash: hash, password: "s3cret-pass"},
		{name: "wrong password", hash: hash, password: "s3cret-pasS", want: ErrInvalidCredentials},
		{name: "malformed hash", hash: "plain", password: "s3cret-pass", want: ErrInvalidPasswordHash},
		{name: "wrong algorithm", hash: strings.Replace(hash, "argon2id", "argon2i", 1), password: "s3cret-pass", want: ErrInvalidPasswordHash},
		{name: "wrong version", hash: strings.Replace(hash, "v=19", "v=16", 1), password: "s3cret-pass", want: ErrIncompatiblePasswordVersion},
		{name: "garbled parameters", hash: strings.Replace(hash, "m=1024", "m=lots", 1), password: "s3cret-pass", want: ErrInvalidPasswordHash},
		{name: "empty key", hash: hash[:strings.LastIndex(hash, "$")+1], password: "s3cret-pass", want: ErrInvalidPasswordHash},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := VerifyPassword(tc.hash, tc.password)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
