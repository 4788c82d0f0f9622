//go:build !windows

package manifest

// register is a no-op: outside Windows browsers find manifests by path.
func register(Browser, string, string) error { return nil }
