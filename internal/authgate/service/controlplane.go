package service

// ControlPlaneURLs carries the two faces of the control-plane identity
// provider: the public host that appears in discovery metadata, and the
// internal proxy host that is actually reachable from this backend.
type ControlPlaneURLs struct {
	Host  string // bare public hostname
	URL   string // https://<host>, as it appears in discovered endpoints
	Proxy string // http://<proxy-host>, the reachable substitute
}

// NewControlPlaneURLs builds ControlPlaneURLs from the CP_URL and CP_DOMAIN
// values. Either being empty yields the zero value; callers decide whether
// that is fatal (authenticator) or just disables routes (router).
func NewControlPlaneURLs(cpURL, cpDomain string) ControlPlaneURLs {
	if cpURL == "" || cpDomain == "" {
		return ControlPlaneURLs{}
	}
	return ControlPlaneURLs{
		Host:  cpURL,
		URL:   "https://" + cpURL,
		Proxy: "http://" + cpDomain,
	}
}

// Configured reports whether both control-plane hosts are known.
func (c ControlPlaneURLs) Configured() bool {
	return c.Host != "" && c.Proxy != ""
}
