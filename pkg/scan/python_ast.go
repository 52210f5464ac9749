// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/dlclark/regexp2"

	"github.com/kraklabs/skillscan/pkg/model"
)

// pyCallRule describes one (module, function) combination the AST walker
// recognises, keyed by the dotted callee it resolves to.
type pyCallRule struct {
	severity    model.Severity
	description string
	findingType string
}

// pyRuleTable is the frozen lookup table of (module, function) -> rule, per
// the process-wide state design note. Built once at package init.
var pyRuleTable = map[string]pyCallRule{
	"os.system":            {model.SeverityHigh, "shell command execution via os.system", "shell_injection"},
	"os.popen":             {model.SeverityHigh, "shell command execution via os.popen", "shell_injection"},
	"subprocess.call":      {model.SeverityHigh, "subprocess invocation", "subprocess_call"},
	"subprocess.run":       {model.SeverityHigh, "subprocess invocation", "subprocess_call"},
	"subprocess.Popen":     {model.SeverityHigh, "subprocess invocation", "subprocess_call"},
	"subprocess.check_call": {model.SeverityHigh, "subprocess invocation", "subprocess_call"},
	"pickle.loads":         {model.SeverityHigh, "unpickling arbitrary bytes can execute code", "unsafe_deserialization"},
	"pickle.load":          {model.SeverityHigh, "unpickling arbitrary bytes can execute code", "unsafe_deserialization"},
	"yaml.load":            {model.SeverityMedium, "yaml.load without SafeLoader can execute code", "unsafe_deserialization"},
	"requests.get":         {model.SeverityMedium, "outbound network request", "network_call"},
	"requests.post":        {model.SeverityMedium, "outbound network request", "network_call"},
	"requests.put":         {model.SeverityMedium, "outbound network request", "network_call"},
	"urllib.request.urlopen": {model.SeverityMedium, "outbound network request", "network_call"},
	"socket.socket":        {model.SeverityMedium, "raw socket creation", "network_call"},
	"http.client.HTTPConnection": {model.SeverityMedium, "outbound network request", "network_call"},
}

// networkCallTypes are S2 finding types that count as "network-indicating"
// for the permission cross-check.
var networkCallTypes = map[string]bool{"network_call": true}

// subprocessCallTypes are S2 finding types that count as
// "subprocess-indicating" for the permission cross-check.
var subprocessCallTypes = map[string]bool{"subprocess_call": true, "shell_injection": true}

// obfuscationPattern matches `base64` ... `decode` ... eventually an exec
// call, allowing intervening dotted access (e.g. base64.b64decode(x).decode()
// piped into exec(...)). regexp2 supplies the lookahead RE2 cannot express.
var obfuscationPattern = regexp2.MustCompile(`(?i)base64[\s\S]{0,80}decode[\s\S]{0,80}(?=exec\()`, regexp2.None)

// rot13Pattern flags rot13 codec usage, a common lightweight obfuscation.
var rot13Pattern = regexp2.MustCompile(`(?i)codecs\.decode\([^)]*['"]rot_?13['"]`, regexp2.None)

var pyParserLanguage = python.GetLanguage()

// analyzePython runs the AST walk and source-level obfuscation checks over
// one Python file's contents.
func analyzePython(ctx context.Context, rel string, content []byte) []model.Finding {
	parser := sitter.NewParser()
	parser.SetLanguage(pyParserLanguage)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		// Unparseable Python files are skipped silently per the component design.
		return nil
	}
	defer tree.Close()

	root := tree.RootNode()

	w := &pythonWalker{content: content, rel: rel, aliases: make(map[string]string)}
	w.collectImports(root)
	w.walk(root)

	w.findings = append(w.findings, detectObfuscation(rel, content)...)

	return w.findings
}

type pythonWalker struct {
	content  []byte
	rel      string
	aliases  map[string]string // local name -> fully-qualified module/symbol
	findings []model.Finding
}

// collectImports performs a shallow top-level-and-nested scan for import
// and import-from statements, recording alias -> fully-qualified symbol.
func (w *pythonWalker) collectImports(node *sitter.Node) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "import_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			w.recordImportChild(child, "")
		}
	case "import_from_statement":
		moduleNode := node.ChildByFieldName("module_name")
		module := ""
		if moduleNode != nil {
			module = moduleNode.Content(w.content)
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child == moduleNode {
				continue
			}
			w.recordImportChild(child, module)
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		w.collectImports(node.Child(i))
	}
}

func (w *pythonWalker) recordImportChild(child *sitter.Node, fromModule string) {
	if child == nil {
		return
	}
	switch child.Type() {
	case "dotted_name", "identifier":
		name := child.Content(w.content)
		if fromModule != "" {
			w.aliases[name] = fromModule + "." + name
		} else {
			w.aliases[lastSegment(name)] = name
		}
	case "aliased_import":
		nameNode := child.ChildByFieldName("name")
		aliasNode := child.ChildByFieldName("alias")
		if nameNode == nil || aliasNode == nil {
			return
		}
		name := nameNode.Content(w.content)
		alias := aliasNode.Content(w.content)
		if fromModule != "" {
			w.aliases[alias] = fromModule + "." + name
		} else {
			w.aliases[alias] = name
		}
	}
}

func lastSegment(dotted string) string {
	parts := strings.Split(dotted, ".")
	return parts[len(parts)-1]
}

// walk recursively visits call expressions, resolving callees against the
// import table and the direct-builtin critical list.
func (w *pythonWalker) walk(node *sitter.Node) {
	if node == nil {
		return
	}
	if node.Type() == "call" {
		w.handleCall(node)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		w.walk(node.Child(i))
	}
}

func (w *pythonWalker) handleCall(node *sitter.Node) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}
	callee := w.resolveCallee(fnNode)
	if callee == "" {
		return
	}

	line := int(fnNode.StartPoint().Row) + 1
	location := w.rel + ":" + strconv.Itoa(line)

	switch callee {
	case "eval", "exec", "compile":
		w.findings = append(w.findings, model.Finding{
			Stage: model.StageStaticCode, Severity: model.SeverityCritical,
			Type: "dynamic_eval", Description: "direct call to " + callee + " regardless of import context",
			Location: location, Tool: "stage2_ast",
		})
		return
	}

	if rule, ok := pyRuleTable[callee]; ok {
		w.findings = append(w.findings, model.Finding{
			Stage: model.StageStaticCode, Severity: rule.severity,
			Type: rule.findingType, Description: rule.description,
			Location: location, Tool: "stage2_ast",
		})
	}
}

// resolveCallee resolves a call's function expression to a dotted name,
// substituting the first segment via the import-alias table when possible.
func (w *pythonWalker) resolveCallee(fnNode *sitter.Node) string {
	switch fnNode.Type() {
	case "identifier":
		name := fnNode.Content(w.content)
		if resolved, ok := w.aliases[name]; ok {
			return resolved
		}
		return name
	case "attribute":
		objNode := fnNode.ChildByFieldName("object")
		attrNode := fnNode.ChildByFieldName("attribute")
		if objNode == nil || attrNode == nil {
			return ""
		}
		obj := w.resolveObjectPath(objNode)
		attr := attrNode.Content(w.content)
		if obj == "" {
			return attr
		}
		return obj + "." + attr
	default:
		return ""
	}
}

func (w *pythonWalker) resolveObjectPath(node *sitter.Node) string {
	switch node.Type() {
	case "identifier":
		name := node.Content(w.content)
		if resolved, ok := w.aliases[name]; ok {
			return resolved
		}
		return name
	case "attribute":
		objNode := node.ChildByFieldName("object")
		attrNode := node.ChildByFieldName("attribute")
		if objNode == nil || attrNode == nil {
			return node.Content(w.content)
		}
		return w.resolveObjectPath(objNode) + "." + attrNode.Content(w.content)
	default:
		return node.Content(w.content)
	}
}

// detectObfuscation runs the source-level regex pass described in the
// component design after the AST walk completes.
func detectObfuscation(rel string, content []byte) []model.Finding {
	var findings []model.Finding
	src := string(content)

	if m, _ := obfuscationPattern.FindStringMatch(src); m != nil {
		line := 1 + strings.Count(src[:m.Index], "\n")
		findings = append(findings, model.Finding{
			Stage: model.StageStaticCode, Severity: model.SeverityCritical,
			Type: "obfuscated_execution", Description: "base64-decoded content is passed to exec",
			Location: rel + ":" + strconv.Itoa(line), Tool: "stage2_obfuscation",
			Evidence: truncateEvidence(m.String()),
		})
	}
	if m, _ := rot13Pattern.FindStringMatch(src); m != nil {
		line := 1 + strings.Count(src[:m.Index], "\n")
		findings = append(findings, model.Finding{
			Stage: model.StageStaticCode, Severity: model.SeverityHigh,
			Type: "obfuscated_encoding", Description: "rot13 codec usage suggests string obfuscation",
			Location: rel + ":" + strconv.Itoa(line), Tool: "stage2_obfuscation",
			Evidence: truncateEvidence(m.String()),
		})
	}
	return findings
}

func truncateEvidence(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
