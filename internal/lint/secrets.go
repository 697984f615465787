package lint

import (
	"fmt"
	"regexp"
	"strings"

	rdsscheduler "github.com/lex00/rds-scheduler-go"
)

// SecretPattern detects hardcoded secrets in template values.
//
// Detects:
//   - AWS access keys (AKIA...)
//   - AWS secret keys (40 character base64 strings)
//   - Private keys (-----BEGIN ... PRIVATE KEY-----)
//   - GitHub, Stripe and Slack tokens
//   - Literal values under sensitive property names (password, token, ...)
//
// Dynamic references ({{resolve:...}}) and intrinsic functions are never
// reported. The GitHub token reaches the pipeline as a Secrets Manager
// dynamic reference and must stay that way.
type SecretPattern struct{}

func (r SecretPattern) ID() string { return "RDS007" }
func (r SecretPattern) Description() string {
	return "Detect hardcoded secrets, API keys, and sensitive credentials"
}

type secretPatternDef struct {
	name    string
	pattern *regexp.Regexp
}

var secretPatterns = []secretPatternDef{
	// AWS Access Key ID (starts with AKIA, ABIA, ACCA, or ASIA)
	{"AWS access key", regexp.MustCompile(`^(A3T[A-Z0-9]|AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16}$`)},

	{"AWS secret key", regexp.MustCompile(`^[A-Za-z0-9/+=]{40}$`)},

	{"private key", regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|DSA\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`)},

	{"Stripe API key", regexp.MustCompile(`^[sp]k_(live|test)_[a-zA-Z0-9]{24,}$`)},

	{"GitHub token", regexp.MustCompile(`^gh[pousr]_[A-Za-z0-9_]{36,}$`)},
	{"GitHub token", regexp.MustCompile(`^github_pat_[A-Za-z0-9_]{22,}$`)},

	{"Slack token", regexp.MustCompile(`^xox[baprs]-[0-9]{10,}-[0-9]{10,}-[a-zA-Z0-9]{24,}$`)},

	{"API key", regexp.MustCompile(`^[A-Za-z0-9_\-]{32,}$`)},
}

// sensitiveFieldNames are property and variable names that commonly hold
// secrets, compared lowercased.
var sensitiveFieldNames = map[string]bool{
	"password":          true,
	"secret":            true,
	"api_key":           true,
	"apikey":            true,
	"access_key":        true,
	"accesskey":         true,
	"private_key":       true,
	"privatekey":        true,
	"secret_key":        true,
	"secretkey":         true,
	"secrettoken":       true,
	"token":             true,
	"oauthtoken":        true,
	"auth_token":        true,
	"authtoken":         true,
	"github_token":      true,
	"bearer_token":      true,
	"credentials":       true,
	"connection_string": true,
}

func (r SecretPattern) Check(stack string, t *rdsscheduler.Template) []rdsscheduler.LintIssue {
	var issues []rdsscheduler.LintIssue
	for _, id := range sortedResources(t, "") {
		walk("", t.Resources[id].Properties, func(key, value string) {
			if msg := r.match(key, value); msg != "" {
				issues = append(issues, issue(r, stack, id, SeverityError, "%s - use Secrets Manager or Parameter Store", msg))
			}
		})
	}
	for _, name := range sortedKeys(t.Parameters) {
		if s, ok := t.Parameters[name].Default.(string); ok {
			if msg := r.match(name, s); msg != "" {
				issues = append(issues, issue(r, stack, name, SeverityError, "%s in parameter default", msg))
			}
		}
	}
	return issues
}

// match returns a description of the secret value holds, or "".
func (r SecretPattern) match(key, value string) string {
	if strings.HasPrefix(value, "{{resolve:") {
		return ""
	}

	if len(value) >= 10 {
		for _, sp := range secretPatterns {
			if !sp.pattern.MatchString(value) {
				continue
			}
			if sp.name == "AWS secret key" && (isSafeString(value) || !isHighEntropy(value)) {
				continue
			}
			if sp.name == "API key" && !isHighEntropy(value) {
				continue
			}
			return fmt.Sprintf("potential %s detected", sp.name)
		}
	}

	if sensitiveFieldNames[strings.ToLower(key)] && len(value) >= 8 && !isPlaceholder(value) {
		return fmt.Sprintf("hardcoded value in sensitive field '%s'", key)
	}
	return ""
}

// walk calls fn for every string leaf with the nearest map key. Intrinsic
// functions are skipped; their strings are logical IDs, not values.
func walk(key string, v any, fn func(key, value string)) {
	switch x := v.(type) {
	case string:
		fn(key, x)
	case []any:
		for _, item := range x {
			walk(key, item, fn)
		}
	case map[string]any:
		if isIntrinsic(x) {
			return
		}
		for _, k := range sortedKeys(x) {
			walk(k, x[k], fn)
		}
	}
}

func isIntrinsic(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	for k := range m {
		return k == "Ref" || strings.HasPrefix(k, "Fn::")
	}
	return false
}

// isSafeString checks if a string is likely safe (not a secret)
func isSafeString(s string) bool {
	safePatterns := []string{
		"arn:aws:",
		"${",
		"AWS::",
		"http://",
		"https://",
		"s3://",
		"lambda",
		"logs.",
		"events.",
		".amazonaws.com",
	}

	for _, pattern := range safePatterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}

// isHighEntropy checks if a string has high entropy (likely a secret)
func isHighEntropy(s string) bool {
	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= '0' && c <= '9':
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	count := 0
	for _, has := range []bool{hasLower, hasUpper, hasDigit, hasSpecial} {
		if has {
			count++
		}
	}
	return count >= 3 && len(s) >= 32
}

// isPlaceholder checks if a string looks like a placeholder
func isPlaceholder(s string) bool {
	s = strings.ToLower(s)
	placeholders := []string{
		"changeme",
		"placeholder",
		"example",
		"your-",
		"<",
		">",
		"xxx",
		"dummy",
	}

	for _, p := range placeholders {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
