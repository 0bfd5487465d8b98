package facade

import "github.com/meidoworks/orgsync/api"

func IsFacade(c api.LedgerClient) bool {
	return c != nil && c.Kind() == api.KindMultiOrg
}

// LocalMSPIDs returns the organizations a client can administer directly.
func LocalMSPIDs(c api.LedgerClient) []string {
	if c == nil {
		return nil
	}
	switch c.Kind() {
	case api.KindMultiOrg:
		if f, ok := c.(*Facade); ok {
			return f.MSPIDs()
		}
	case api.KindSingleOrg:
		if o, ok := c.(api.OrgClient); ok {
			return []string{o.MSPID()}
		}
	}
	return nil
}
