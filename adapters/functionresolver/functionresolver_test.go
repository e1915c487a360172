package functionresolver

import "testing"

func TestSplitOwnerRepoPath(t *testing.T) {
	owner, repo, path, err := splitOwnerRepoPath("myorg/funcs/lib/add.json")
	if err != nil {
		t.Fatalf("splitOwnerRepoPath: %v", err)
	}
	if owner != "myorg" || repo != "funcs" || path != "lib/add.json" {
		t.Fatalf("got %q %q %q", owner, repo, path)
	}
}

func TestSplitOwnerRepoPathRejectsShort(t *testing.T) {
	if _, _, _, err := splitOwnerRepoPath("myorg/funcs"); err == nil {
		t.Fatalf("expected error for a path with no file component")
	}
}

func TestToFuncSockets(t *testing.T) {
	out := toFuncSockets([]socketDoc{{Name: "a", Socket: "integer"}, {Name: "b", Socket: "event"}})
	if len(out) != 2 || out[0].Name != "a" || string(out[0].Socket) != "integer" {
		t.Fatalf("unexpected conversion: %+v", out)
	}
}
