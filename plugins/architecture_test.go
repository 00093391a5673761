package plugins

import (
	"testing"

	"squadcore/testutil"
)

// TestPluginsDoNotImportDomain enforces that plugin packages reach scene types
// through the aliases in internal/core and never import pkg/domain directly.
func TestPluginsDoNotImportDomain(t *testing.T) {
	testutil.AssertNoTreeImports(t, ".", testutil.DomainImportForbidden, "plugins use the internal/core aliases")
}

func TestPluginsDoNotImportHostTransport(t *testing.T) {
	testutil.AssertNoTreeImports(t, ".", testutil.HostTransportForbidden, "plugins contribute rules, not endpoints")
}
