package main

import "testing"

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := []string{
		"load", "preview", "find", "find-one", "count", "insert",
		"jobs", "create-job", "update-job", "run", "logs", "watch", "mcp",
	}
	for _, name := range names {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Errorf("subcommand %q not found: %v", name, err)
			continue
		}
		if cmd == rootCmd {
			t.Errorf("subcommand %q resolved to the root command", name)
		}
	}
}

func TestJobInputFromFlags(t *testing.T) {
	flags := createJobCmd.Flags()
	flags.Set("name", "good dc characters")
	flags.Set("publisher", "dc")
	flags.Set("collection", "dc_characters")
	flags.Set("dedupe-key", "name")
	flags.Set("transforms", `[{"type":"filter","config":{"field":"ALIGN","op":"eq","value":"Good Characters"}}]`)

	input, err := jobInputFromFlags(createJobCmd)
	if err != nil {
		t.Fatal(err)
	}
	if input.Name != "good dc characters" || input.Collection != "dc_characters" {
		t.Fatalf("unexpected input: %+v", input)
	}
	if input.SourceConfig["publisher"] != "dc" {
		t.Errorf("publisher not carried into source config: %+v", input.SourceConfig)
	}
	if input.DedupeKey != "name" {
		t.Errorf("dedupe key = %q", input.DedupeKey)
	}
	if len(input.Transforms) != 1 || input.Transforms[0].Type != "filter" {
		t.Fatalf("transforms not parsed: %+v", input.Transforms)
	}
}

func TestJobInputFromFlags_BadTransforms(t *testing.T) {
	flags := updateJobCmd.Flags()
	flags.Set("transforms", `{not json`)

	if _, err := jobInputFromFlags(updateJobCmd); err == nil {
		t.Fatal("expected error for invalid transforms JSON")
	}
}

func TestParseTransforms_Empty(t *testing.T) {
	transforms, err := parseTransforms("")
	if err != nil {
		t.Fatal(err)
	}
	if transforms != nil {
		t.Fatalf("expected no transforms, got %+v", transforms)
	}
}
