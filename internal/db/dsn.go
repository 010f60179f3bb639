package db

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	knownKey = regexp.MustCompile(`(?i)\b(host|user|password|dbname|port|sslmode)=`)
	secret   = regexp.MustCompile(`(password=)(\S+)`)
)

func isURLDSN(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

// pgOptions is a parsed libpq keyword/value connection string.
type pgOptions map[string]string

func parseOptions(s string) pgOptions {
	opts := pgOptions{}
	for _, field := range strings.Fields(s) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		opts[strings.ToLower(key)] = value
	}
	return opts
}

func (o pgOptions) userinfo() *url.Userinfo {
	user := o["user"]
	if user == "" {
		return nil
	}
	if pass := o["password"]; pass != "" {
		return url.UserPassword(user, pass)
	}
	return url.User(user)
}

// NormalizeDSN strips quotes and redundant whitespace from DATABASE_DSN.
// URL DSNs pass through; keyword/value DSNs get sslmode=disable unless
// they set one. Anything unrecognised is returned for the driver to reject.
func NormalizeDSN(raw string) string {
	s := strings.Trim(strings.TrimSpace(raw), `"'`)
	if s == "" || isURLDSN(s) || !knownKey.MatchString(s) {
		return s
	}
	s = strings.Join(strings.Fields(s), " ")
	if _, ok := parseOptions(s)["sslmode"]; !ok {
		s += " sslmode=disable"
	}
	return s
}

// ToURLDSN rewrites a keyword/value DSN as postgres://, the only form
// golang-migrate understands. Without host or dbname the input is
// returned unchanged.
func ToURLDSN(dsn string) string {
	if dsn == "" || isURLDSN(dsn) {
		return dsn
	}
	opts := parseOptions(dsn)
	if opts["host"] == "" || opts["dbname"] == "" {
		return dsn
	}
	u := url.URL{Scheme: "postgres", Host: opts["host"], Path: "/" + opts["dbname"]}
	if port := opts["port"]; port != "" {
		u.Host += ":" + port
	}
	if info := opts.userinfo(); info != nil {
		u.User = info
	}
	if mode, ok := opts["sslmode"]; ok {
		u.RawQuery = url.Values{"sslmode": {mode}}.Encode()
	}
	return u.String()
}

// MaskDSN hides the password for logging.
func MaskDSN(dsn string) string {
	if isURLDSN(dsn) {
		u, err := url.Parse(dsn)
		if err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "***")
			}
			return u.String()
		}
	}
	return secret.ReplaceAllString(dsn, "${1}***")
}
