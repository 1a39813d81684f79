package filerepo

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/nerrad567/gray-twin-core/internal/infrastructure/config"
)

// repositories returns every implementation available in this environment.
func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem() error = %v", err)
	}
	repos := map[string]Repository{
		"memory":     NewMemory(),
		"filesystem": fs,
	}

	if endpoint := os.Getenv("GRAYTWIN_TEST_S3_ENDPOINT"); endpoint != "" {
		s3, err := NewS3(config.S3Config{
			Endpoint:  endpoint,
			Region:    "us-east-1",
			Bucket:    "graytwin-test",
			AccessKey: os.Getenv("GRAYTWIN_TEST_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("GRAYTWIN_TEST_S3_SECRET_KEY"),
		})
		if err != nil {
			t.Fatalf("NewS3() error = %v", err)
		}
		if err := s3.EnsureBucket(context.Background()); err != nil {
			t.Fatalf("EnsureBucket() error = %v", err)
		}
		repos["s3"] = s3
	}
	return repos
}

func TestRepository_RoundTrip(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "c20x-Docs.Manual-manual.pdf"
			want := File{Name: "manual.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7")}

			if err := repo.Put(ctx, key, want); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			got, err := repo.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Name != want.Name || got.ContentType != want.ContentType || !bytes.Equal(got.Data, want.Data) {
				t.Errorf("Get() = %+v, want %+v", got, want)
			}

			ok, err := repo.Exists(ctx, key)
			if err != nil || !ok {
				t.Errorf("Exists() = %v, %v, want true", ok, err)
			}

			if err := repo.Delete(ctx, key); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := repo.Get(ctx, key); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("Get() after delete error = %v, want ErrFileNotFound", err)
			}
			if err := repo.Delete(ctx, key); err != nil {
				t.Errorf("second Delete() error = %v, want nil", err)
			}
		})
	}
}

func TestRepository_Overwrite(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := repo.Put(ctx, "k", File{Name: "a.txt", ContentType: "text/plain", Data: []byte("one")}); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := repo.Put(ctx, "k", File{Name: "b.txt", ContentType: "text/plain", Data: []byte("two")}); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			got, err := repo.Get(ctx, "k")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got.Data) != "two" || got.Name != "b.txt" {
				t.Errorf("Get() = %q %q, want two b.txt", got.Data, got.Name)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{key: "abc-Path.To[0]-f.bin", want: true},
		{key: "", want: false},
		{key: "..", want: false},
		{key: "a/b", want: false},
		{key: `a\b`, want: false},
		{key: "x.meta.json", want: false},
		{key: strings.Repeat("k", MaxKeyLength), want: true},
		{key: strings.Repeat("k", MaxKeyLength+1), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := validateKey(tt.key)
			if (err == nil) != tt.want {
				t.Errorf("validateKey(%q) error = %v, want valid=%v", tt.key, err, tt.want)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("validateKey(%q) error = %v, want ErrInvalidKey", tt.key, err)
			}
		})
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if err := m.Put(ctx, "k", File{Data: []byte("abc")}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	f, _ := m.Get(ctx, "k")
	f.Data[0] = 'X'
	again, _ := m.Get(ctx, "k")
	if string(again.Data) != "abc" {
		t.Errorf("stored data mutated through Get(): %q", again.Data)
	}
}
