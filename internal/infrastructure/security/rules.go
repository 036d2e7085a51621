package security

import (
	"regexp"

	"github.com/google/cel-go/cel"

	"github.com/doeshing/sentry-go/internal/domain"
)

// Rule matches a normalized command string. A rule fires when match (or
// test) accepts the command, unless rejects it, and the optional CEL
// condition holds.
type Rule struct {
	Reason string
	Source string

	match  *regexp.Regexp
	unless *regexp.Regexp
	test   func(command string) bool
	when   cel.Program
}

// Matches reports whether the rule applies to command.
func (r Rule) Matches(command string) bool {
	switch {
	case r.test != nil:
		if !r.test(command) {
			return false
		}
	case r.match != nil:
		if !r.match.MatchString(command) {
			return false
		}
	case r.when == nil:
		return false
	}
	if r.unless != nil && r.unless.MatchString(command) {
		return false
	}
	if r.when != nil && !evalCondition(r.when, command) {
		return false
	}
	return true
}

// RuleSet holds the three ordered rule tables.
type RuleSet struct {
	High   []Rule
	Medium []Rule
	Low    []Rule
}

// Tables returns the tables in evaluation order.
func (s RuleSet) Tables() []RuleTable {
	return []RuleTable{
		{Level: domain.ImpactHigh, Rules: s.High},
		{Level: domain.ImpactMedium, Rules: s.Medium},
		{Level: domain.ImpactLow, Rules: s.Low},
	}
}

// Prepend returns a set where extra rules are evaluated before the rules of
// the same table.
func (s RuleSet) Prepend(extra RuleSet) RuleSet {
	return RuleSet{
		High:   append(append([]Rule{}, extra.High...), s.High...),
		Medium: append(append([]Rule{}, extra.Medium...), s.Medium...),
		Low:    append(append([]Rule{}, extra.Low...), s.Low...),
	}
}

// Len counts every rule in the set.
func (s RuleSet) Len() int {
	return len(s.High) + len(s.Medium) + len(s.Low)
}

// RuleTable pairs a level with its rules.
type RuleTable struct {
	Level domain.ImpactLevel
	Rules []Rule
}

const builtinSource = "builtin"

func pattern(expr, reason string) Rule {
	return Rule{Reason: reason, Source: builtinSource, match: regexp.MustCompile(`(?i)` + expr)}
}

func patternUnless(expr, unless, reason string) Rule {
	rule := pattern(expr, reason)
	rule.unless = regexp.MustCompile(`(?i)` + unless)
	return rule
}

func structural(test func(string) bool, reason string) Rule {
	return Rule{Reason: reason, Source: builtinSource, test: test}
}

// DefaultRules returns the built-in tables.
func DefaultRules() RuleSet {
	return RuleSet{High: highRules, Medium: mediumRules, Low: lowRules}
}

var lowRules = []Rule{
	pattern(`^\s*(echo|printf)\b`, "display"),
	pattern(`^\s*(pwd|whoami|id|groups|date|uname|hostname|uptime)\b`, "system info"),
	pattern(`^\s*(env|printenv|which|type)\b`, "environment info"),
	pattern(`^\s*(cd|pushd|popd)\b`, "directory navigation"),
	pattern(`^\s*(ls|tree)\b`, "read-only listing"),
	pattern(`^\s*(cat|less|more|head|tail|wc|stat|file)\b`, "read-only file"),
	patternUnless(`^\s*sed\b`, `\s-i\b`, "text processing"),
	pattern(`^\s*(grep|egrep|fgrep|rg|awk|cut|sort|uniq|tr|column|nl)\b`, "text processing"),
	patternUnless(`^\s*find\b`, `\b(delete|exec|ok)\b`, "file discovery"),

	pattern(`^\s*(ps|top|htop|pgrep|pstree|lsof|ss|netstat|df|du|free|vmstat|iostat|dmesg)\b`, "runtime inspection"),
	pattern(`^\s*(md5sum|sha1sum|sha256sum|sha512sum|cksum|b2sum)\b`, "checksums"),

	pattern(`^\s*git\s+(status|log|show|diff|blame|grep|rev-parse|rev-list|ls-files|ls-tree|cat-file)\b`, "read-only git"),
	patternUnless(`^\s*git\s+branch\b`, `\s-[dDmM]\b`, "read-only git branch view"),
	patternUnless(`^\s*git\s+tag\b`, `\s-d\b`, "read-only git tag view"),
	pattern(`^\s*git\s+remote\s+-v\b`, "read-only git remote view"),
	pattern(`^\s*git\s+stash\s+list\b`, "read-only git stash view"),

	pattern(`^\s*(npm|pnpm|yarn)\s+(ls|list|outdated|info|view)\b`, "package query"),
	pattern(`^\s*(pip|pip3)\s+(list|show|freeze)\b`, "package query"),
	pattern(`^\s*brew\s+(list|info|search)\b`, "package query"),
	pattern(`^\s*(apt|apt-cache)\s+(list|search|show|policy)\b`, "package query"),

	pattern(`^\s*gh\s+(--version|version|help|auth\s+status|repo\s+view|issue\s+view|pr\s+view|run\s+view|run\s+list|api\s+/repos/[^\s]+/[^\s]+/actions/runs)\b`, "github query"),

	pattern(`^\s*docker\s+(ps|images|inspect|logs|stats|top|events|version|info)\b`, "container query"),
	pattern(`^\s*kubectl\s+(get|describe|logs|api-resources|api-versions|version|config\s+view)\b`, "cluster query"),
	pattern(`^\s*helm\s+(list|status|history|get)\b`, "release query"),
	pattern(`^\s*terraform\s+(validate|show|plan)\b`, "infra plan/query"),
}

var mediumRules = []Rule{
	pattern(`\b(touch|mkdir|rmdir|cp|mv|ln|install)\b`, "file mutation"),
	pattern(`^\s*sed\b.*\s-i\b`, "in-place file edit"),
	structural(hasWriteRedirect, "redirect write"),
	structural(hasAppendRedirect, "redirect append"),
	pattern(`\btee\b`, "write via tee"),

	patternUnless(`^\s*git\s+(add|restore|checkout|switch|commit|merge|rebase|cherry-pick|revert|pull|fetch|stash)\b`, `^\s*git\s+stash\s+list\b`, "git mutation"),

	pattern(`^\s*(npm|pnpm|yarn)\s+(install|add|update|upgrade|remove|uninstall|ci)\b`, "package mutation"),
	pattern(`^\s*npx\b`, "one-off package/script execution"),
	pattern(`^\s*(pip|pip3)\s+(install|uninstall)\b`, "package mutation"),
	pattern(`^\s*(cargo|go|gem|bundle|poetry|uv)\s+(install|add|get|update|remove|sync)\b`, "package/toolchain mutation"),
	pattern(`^\s*terraform\s+fmt\b`, "source formatting mutation"),

	pattern(`^\s*(make|cmake|ninja|meson|mvn|gradle|\./gradlew)\b`, "build pipeline"),
	pattern(`^\s*(pytest|jest|vitest)\b`, "test run"),
	pattern(`^\s*(go\s+test|cargo\s+test)\b`, "test run"),
	pattern(`^\s*(npm|pnpm|yarn)\s+run\s+\S+`, "script run"),

	pattern(`^\s*(systemctl|service|launchctl)\s+(start|stop|restart|reload|enable|disable)\b`, "service state mutation"),
	pattern(`^\s*docker\s+(build|pull|compose\s+(up|down|build|pull)|start|stop|restart|rm|rmi|run)\b`, "container mutation"),
}

var highRules = []Rule{
	pattern(`\b(sudo|doas|su|pkexec)\b`, "elevated privileges"),
	pattern(`\b(useradd|userdel|usermod|groupadd|groupdel|passwd)\b`, "identity/security mutation"),

	pattern(`\brm\b`, "destructive delete"),
	pattern(`\b(shred|wipefs|mkfs(\.\w+)?|fdisk|parted|sgdisk)\b`, "disk/filesystem destructive action"),
	pattern(`\bdd\b.*\bof=/dev/`, "raw disk write"),
	pattern(`\btruncate\b`, "destructive truncate"),
	pattern(`^\s*diskutil\s+erase`, "disk erase"),

	pattern(`\b(chown|chgrp|chmod|setfacl|setcap|visudo|chattr)\b`, "permission/security mutation"),
	pattern(`\b(ufw|iptables|nft|firewall-cmd|pfctl|sysctl)\b`, "network/system security mutation"),
	pattern(`\b(reboot|shutdown|halt|poweroff|init\s+[06])\b`, "system availability impact"),

	pattern(`\bcurl\b[^|]*\|\s*(bash|sh|zsh|fish)\b`, "remote execution"),
	pattern(`\bwget\b[^|]*\|\s*(bash|sh|zsh|fish)\b`, "remote execution"),
	pattern(`\biwr\b[^|]*\|\s*iex\b`, "remote execution"),
	pattern(`\binvoke-webrequest\b[^|]*\|\s*invoke-expression\b`, "remote execution"),
	pattern(`\beval\b`, "dynamic execution"),

	pattern(`\bgit\s+push\b`, "remote mutation"),
	pattern(`^\s*gh\s+(issue\s+(create|edit|close|reopen|delete)|pr\s+(create|merge|close|reopen|ready|review)|repo\s+(create|delete|rename|edit)|release\s+create|secret\s+set|variable\s+set|workflow\s+run|run\s+rerun|api\s+.*\b(POST|PUT|PATCH|DELETE)\b)`, "github remote mutation"),
	pattern(`\bgit\s+reset\b.*--hard\b`, "destructive history rewrite"),
	pattern(`\bgit\s+clean\b.*\s-f\b`, "destructive workspace clean"),
	pattern(`\bgit\s+branch\b.*\s-[dD]\b`, "branch deletion"),
	pattern(`\bgit\s+tag\b.*\s-d\b`, "tag deletion"),
	pattern(`\b(docker\s+run\b.*(\s-p\s|\s--publish\s|\s--network\s+host\b|\s--privileged\b)|kubectl\s+port-forward\b|ssh\s+-R\b|nc\b.*\s-l\b|socat\b.*\bLISTEN\b|ngrok\b|cloudflared\b|localtunnel\b)`, "port exposure"),

	pattern(`\bterraform\s+(apply|destroy|state\s+rm|taint|import)\b`, "infra mutation"),
	pattern(`\bkubectl\s+(apply|create|delete|replace|patch|edit|scale|set|drain|cordon|uncordon|rollout\s+(restart|undo))\b`, "cluster mutation"),
	pattern(`\bhelm\s+(install|upgrade|rollback|uninstall|delete)\b`, "release mutation"),
	pattern(`\bansible-playbook\b`, "remote orchestration mutation"),

	pattern(`\b(apt(-get)?|dnf|yum|pacman|zypper)\s+(install|upgrade|dist-upgrade|remove|purge|autoremove)\b`, "system package mutation"),
	pattern(`\bbrew\s+(install|upgrade|uninstall|tap|untap|services\s+(start|stop|restart))\b`, "system package/service mutation"),

	pattern(`\b(drop|truncate|delete|destroy|wipe)\b.*\b(table|database|schema|collection|index|prod|production|db|sensitive)\b`, "database/data destructive action"),
}
