package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qrassure/internal/config"
	"qrassure/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("validate sample: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestCommandsRequireConfigFile(t *testing.T) {
	for _, args := range [][]string{{"config", "validate"}, {"run"}, {"start"}} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			setupCLITestEnv(t)
			missing := filepath.Join(t.TempDir(), "absent.toml")
			_, _, err := runCLI(t, args, missing)
			if !errors.Is(err, config.ErrConfigNotFound) {
				t.Fatalf("expected ErrConfigNotFound, got %v", err)
			}
			requireContains(t, err.Error(), "qrassure config init")
		})
	}
}

func TestRunRejectsConfigWithoutCodes(t *testing.T) {
	env := setupCLITestEnv(t)
	content := "[terminal]\nid = \"T01\"\n\n[pairing]\ntimeout_seconds = 10\n\n[serial]\nport = \"/dev/null\"\n"
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected run to refuse a config without [codes]")
	}
	requireContains(t, err.Error(), "codes.manual_length")
}

func TestConfigValidateRejectsUnknownKeys(t *testing.T) {
	env := setupCLITestEnv(t)
	data, err := os.ReadFile(env.configPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	bad := append(data, []byte("\nnot_a_key = true\n")...)
	if err := os.WriteFile(env.configPath, bad, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, env.configPath); err == nil {
		t.Fatal("expected unknown key to fail validation")
	}
}

func TestConfigShowMasksToken(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("super-secret"))
	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "super-secret") {
		t.Fatal("config show leaked the API token")
	}
	requireContains(t, out, "********")
	requireContains(t, out, `id = "T99"`)
}
