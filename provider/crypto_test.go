package provider

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func testSealer(t *testing.T, material string) *sealer {
	t.Helper()
	s, err := newSealer([]byte(material))
	if err != nil {
		t.Fatalf("newSealer: %v", err)
	}
	return s
}

func TestSealOpenRoundtrip(t *testing.T) {
	s := testSealer(t, "test-key-material-at-least-16-bytes")
	plaintext := []byte(`{"namespaces":{"/app/dev/":{"env":"DB_URL=postgres\n"}}}`)

	sealed, err := s.seal(plaintext)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("postgres")) {
		t.Error("sealed output leaks plaintext")
	}

	opened, err := s.open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Errorf("roundtrip failed: got %q, want %q", opened, plaintext)
	}
}

func TestSealUsesFreshNonce(t *testing.T) {
	s := testSealer(t, "test-key-material-16")
	c1, _ := s.seal([]byte("same input"))
	c2, _ := s.seal([]byte("same input"))
	if bytes.Equal(c1, c2) {
		t.Error("seal should produce different ciphertext each time (random nonce)")
	}
}

func TestOpenFailures(t *testing.T) {
	s := testSealer(t, "key1-must-be-16-bytes")
	other := testSealer(t, "key2-must-be-16-bytes")
	sealed, _ := s.seal([]byte("secret"))

	corrupted := append([]byte(nil), sealed...)
	corrupted[len(corrupted)-1] ^= 0xff

	tests := []struct {
		name   string
		sealer *sealer
		input  []byte
	}{
		{"wrong key", other, sealed},
		{"truncated below nonce size", s, sealed[:5]},
		{"corrupted", s, corrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.sealer.open(tt.input); err == nil {
				t.Error("open should fail")
			}
		})
	}
}

func TestDeriveKey(t *testing.T) {
	material := []byte("consistent-key-material")
	k1, err := deriveKey(material)
	if err != nil {
		t.Fatal(err)
	}
	k2, _ := deriveKey(material)
	if !bytes.Equal(k1, k2) {
		t.Error("deriveKey should be deterministic")
	}
	if len(k1) != keySize {
		t.Errorf("key length = %d, want %d", len(k1), keySize)
	}
}

func TestGenerateKeyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "key")

	if err := GenerateKeyFile(path); err != nil {
		t.Fatalf("GenerateKeyFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key file permissions = %o, want 600", info.Mode().Perm())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read key file: %v", err)
	}
	if len(data) != keySize {
		t.Errorf("key file length = %d, want %d", len(data), keySize)
	}
	dirInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("stat key dir: %v", err)
	}
	if dirInfo.Mode().Perm() != 0o700 {
		t.Errorf("key dir permissions = %o, want 700", dirInfo.Mode().Perm())
	}

	if err := GenerateKeyFile(path); err == nil {
		t.Error("GenerateKeyFile should refuse to overwrite an existing key")
	}
}

func TestLoadKeyMaterial(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "shortkey")
	if err := os.WriteFile(short, []byte("short"), 0o600); err != nil {
		t.Fatal(err)
	}
	open := filepath.Join(dir, "badperms")
	if err := os.WriteFile(open, []byte("good-key-material-16"), 0o644); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good")
	if err := os.WriteFile(good, []byte("good-key-material-16"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENVLINE_TEST_KEY", "from-env")
	t.Setenv("ENVLINE_TEST_EMPTY_KEY", "")

	tests := []struct {
		name    string
		cfg     EncryptionConfig
		want    string
		wantErr bool
	}{
		{"short key file", EncryptionConfig{KeyFile: short}, "", true},
		{"permissive key file", EncryptionConfig{KeyFile: open}, "", true},
		{"good key file", EncryptionConfig{KeyFile: good}, "good-key-material-16", false},
		{"env wins", EncryptionConfig{KeyEnv: "ENVLINE_TEST_KEY", KeyFile: good}, "from-env", false},
		{"empty env", EncryptionConfig{KeyEnv: "ENVLINE_TEST_EMPTY_KEY"}, "", true},
		{"no source", EncryptionConfig{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadKeyMaterial(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadKeyMaterial() error = %v, wantErr %v", err, tt.wantErr)
			}
			if string(got) != tt.want {
				t.Errorf("loadKeyMaterial() = %q, want %q", got, tt.want)
			}
		})
	}
}
