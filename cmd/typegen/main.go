// Command typegen parses Go struct definitions and generates the TypeScript
// types the avatar front end uses for the chat protocol, lip-sync data and
// settings. Run from the project root:
//
//	go run ./cmd/typegen -out frontend/src/types/generated.ts
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// target is one Go type to emit. key is "rel/dir:Name".
type target struct {
	key    string
	tsName string
	// settings types have every field optional: JSON only carries overrides
	// and the Go side fills defaults.
	settings bool
}

// enums are named string types emitted as TS unions of their const values.
var enums = []target{
	{key: "protocol:MessageType", tsName: "MessageType"},
	{key: "lipsync:Shape", tsName: "MouthShape"},
}

var targets = []target{
	// Wire types
	{key: "protocol:Envelope", tsName: "Envelope"},
	{key: "protocol:ChatRequest", tsName: "ChatRequest"},
	{key: "protocol:ChatMessage", tsName: "ChatMessage"},
	{key: "protocol:ChatResponse", tsName: "ChatResponse"},
	{key: "protocol:ErrorResponse", tsName: "ErrorResponse"},
	{key: "lipsync:Data", tsName: "LipsyncData"},
	{key: "lipsync:Metadata", tsName: "LipsyncMetadata"},
	{key: "lipsync:MouthCue", tsName: "MouthCue"},
	{key: "lipsync:VisemeEvent", tsName: "VisemeEvent"},
	{key: "server:HealthResponse", tsName: "HealthResponse"},
	// Settings
	{key: "factories:SettingsConfig", tsName: "Settings", settings: true},
	{key: "server:Config", tsName: "ServerConfig", settings: true},
	{key: "factories:LoggingSettings", tsName: "LoggingConfig", settings: true},
	{key: "handlers/chat:ChatConfig", tsName: "ChatConfig", settings: true},
	{key: "factories:CacheSettings", tsName: "CacheConfig", settings: true},
	{key: "cache:RedisConfig", tsName: "RedisConfig", settings: true},
	{key: "factories:LLMSettings", tsName: "LlmSettings", settings: true},
	{key: "factories:LLMFactoryConfig", tsName: "LlmServiceConfig", settings: true},
	{key: "services/openai/llm:Config", tsName: "OpenAiLlmConfig", settings: true},
	{key: "factories:TTSSettings", tsName: "TtsSettings", settings: true},
	{key: "factories:TTSFactoryConfig", tsName: "TtsServiceConfig", settings: true},
	{key: "services/azure/tts:AzureTTSConfig", tsName: "AzureTtsConfig", settings: true},
	{key: "services/elevenlabs/tts:ElevenLabsTTSConfig", tsName: "ElevenLabsTtsConfig", settings: true},
	{key: "services/cartesia/tts:CartesiaTTSConfig", tsName: "CartesiaTtsConfig", settings: true},
}

// secretFields never leave the server.
var secretFields = map[string]bool{
	"api_key":  true,
	"password": true,
}

var builtinTypes = map[string]string{
	"string":      "string",
	"int":         "number",
	"int8":        "number",
	"int16":       "number",
	"int32":       "number",
	"int64":       "number",
	"uint":        "number",
	"uint8":       "number",
	"uint16":      "number",
	"uint32":      "number",
	"uint64":      "number",
	"float32":     "number",
	"float64":     "number",
	"bool":        "boolean",
	"any":         "unknown",
	"interface{}": "unknown",
}

// external maps qualified types from outside the module.
var external = map[string]string{
	"json.RawMessage": "unknown",
	"time.Time":       "string",
}

type fieldInfo struct {
	jsonName string
	goType   string // qualified: "*services/openai/llm:Config", "[]protocol:ChatMessage"
	optional bool
}

type structInfo struct {
	key    string
	fields []fieldInfo
}

// model is everything parsed from the module, keyed by "rel/dir:Name".
type model struct {
	structs map[string]*structInfo
	aliases map[string]string   // named type -> underlying qualified type
	consts  map[string][]string // named type -> string const values, declaration order
}

func main() {
	outPath := flag.String("out", "frontend/src/types/generated.ts", "output TypeScript file path")
	flag.Parse()

	root, err := os.Getwd()
	if err != nil {
		fatal("getwd: %v", err)
	}

	out, err := generate(root, enums, targets)
	if err != nil {
		fatal("%v", err)
	}

	absOut := *outPath
	if !filepath.IsAbs(absOut) {
		absOut = filepath.Join(root, absOut)
	}
	if err := os.MkdirAll(filepath.Dir(absOut), 0o755); err != nil {
		fatal("mkdir: %v", err)
	}
	if err := os.WriteFile(absOut, out, 0o644); err != nil {
		fatal("write: %v", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", absOut, len(out))
}

// generate parses the module at root and renders the requested types.
func generate(root string, enums, targets []target) ([]byte, error) {
	modPath, err := modulePath(root)
	if err != nil {
		return nil, err
	}
	dirs, err := discoverGoDirs(root)
	if err != nil {
		return nil, fmt.Errorf("discover dirs: %w", err)
	}

	m := &model{
		structs: map[string]*structInfo{},
		aliases: map[string]string{},
		consts:  map[string][]string{},
	}
	for _, dir := range dirs {
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return nil, err
		}
		if err := m.parseDir(dir, filepath.ToSlash(rel), modPath); err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", rel, err)
		}
	}

	names := map[string]string{}
	for _, t := range append(append([]target{}, enums...), targets...) {
		names[t.key] = t.tsName
	}

	var buf bytes.Buffer
	buf.WriteString("// Code generated by cmd/typegen; DO NOT EDIT.\n")
	fmt.Fprintf(&buf, "// Source: Go types from %s\n\n", modPath)

	for _, e := range enums {
		vals := m.consts[e.key]
		if len(vals) == 0 {
			return nil, fmt.Errorf("enum %q has no string constants", e.key)
		}
		fmt.Fprintf(&buf, "/** Generated from Go type: %s */\n", e.key)
		fmt.Fprintf(&buf, "export type %s = %s\n\n", e.tsName, unionLiteral(vals))
	}

	for _, t := range targets {
		si, ok := m.structs[t.key]
		if !ok {
			return nil, fmt.Errorf("struct %q not found", t.key)
		}
		fmt.Fprintf(&buf, "/** Generated from Go struct: %s */\n", t.key)
		fmt.Fprintf(&buf, "export interface %s {\n", t.tsName)
		for _, f := range si.fields {
			opt := ""
			if t.settings || f.optional {
				opt = "?"
			}
			fmt.Fprintf(&buf, "  %s%s: %s\n", f.jsonName, opt, m.resolve(f.goType, names))
		}
		buf.WriteString("}\n\n")
	}
	return buf.Bytes(), nil
}

// modulePath reads the module directive from root/go.mod.
func modulePath(root string) (string, error) {
	f, err := os.Open(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if mod, ok := strings.CutPrefix(line, "module "); ok {
			return strings.Trim(strings.TrimSpace(mod), `"`), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no module directive in %s", f.Name())
}

// discoverGoDirs returns all directories under root holding non-test .go
// files. Like the go tool it ignores directories starting with "." or "_"
// and testdata.
func discoverGoDirs(root string) ([]string, error) {
	seen := map[string]bool{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "testdata" || name == "vendor" || name == "node_modules") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".go") && !strings.HasSuffix(d.Name(), "_test.go") {
			seen[filepath.Dir(path)] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (m *model) parseDir(dir, rel, modPath string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	fset := token.NewFileSet()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.SkipObjectResolution)
		if err != nil {
			return err
		}
		m.parseFile(file, rel, modPath)
	}
	return nil
}

func (m *model) parseFile(file *ast.File, rel, modPath string) {
	q := &qualifier{rel: rel, imports: importsOf(file, modPath)}

	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		switch genDecl.Tok {
		case token.TYPE:
			for _, spec := range genDecl.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				key := rel + ":" + ts.Name.Name
				if st, ok := ts.Type.(*ast.StructType); ok {
					m.structs[key] = parseStruct(key, st, q)
					continue
				}
				m.aliases[key] = q.typeString(ts.Type)
			}

		case token.CONST:
			for _, spec := range genDecl.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok || vs.Type == nil {
					continue
				}
				typeKey := q.typeString(vs.Type)
				for _, val := range vs.Values {
					lit, ok := val.(*ast.BasicLit)
					if !ok || lit.Kind != token.STRING {
						continue
					}
					s, err := strconv.Unquote(lit.Value)
					if err != nil {
						continue
					}
					m.consts[typeKey] = append(m.consts[typeKey], s)
				}
			}
		}
	}
}

// importsOf maps the file's import names to module-relative directories for
// imports inside the module.
func importsOf(file *ast.File, modPath string) map[string]string {
	imports := map[string]string{}
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		rel, ok := strings.CutPrefix(path, modPath+"/")
		if !ok {
			continue
		}
		name := rel[strings.LastIndex(rel, "/")+1:]
		if imp.Name != nil {
			name = imp.Name.Name
		}
		imports[name] = rel
	}
	return imports
}

func parseStruct(key string, st *ast.StructType, q *qualifier) *structInfo {
	si := &structInfo{key: key}
	for _, field := range st.Fields.List {
		if field.Tag == nil {
			continue
		}
		tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
		parts := strings.Split(tag.Get("json"), ",")
		jsonName := parts[0]
		if jsonName == "" || jsonName == "-" || secretFields[jsonName] {
			continue
		}

		omitempty := false
		for _, p := range parts[1:] {
			if p == "omitempty" {
				omitempty = true
			}
		}
		_, isPointer := field.Type.(*ast.StarExpr)

		si.fields = append(si.fields, fieldInfo{
			jsonName: jsonName,
			goType:   q.typeString(field.Type),
			optional: omitempty || isPointer,
		})
	}
	return si
}

// qualifier renders type expressions with module types spelled "rel/dir:Name".
type qualifier struct {
	rel     string
	imports map[string]string
}

func (q *qualifier) typeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		if _, ok := builtinTypes[t.Name]; ok {
			return t.Name
		}
		return q.rel + ":" + t.Name
	case *ast.StarExpr:
		return "*" + q.typeString(t.X)
	case *ast.ArrayType:
		return "[]" + q.typeString(t.Elt)
	case *ast.MapType:
		return "map[" + q.typeString(t.Key) + "]" + q.typeString(t.Value)
	case *ast.SelectorExpr:
		pkg, _ := t.X.(*ast.Ident)
		if pkg != nil {
			if rel, ok := q.imports[pkg.Name]; ok {
				return rel + ":" + t.Sel.Name
			}
			return pkg.Name + "." + t.Sel.Name
		}
		return "unknown"
	case *ast.InterfaceType:
		return "interface{}"
	default:
		return "unknown"
	}
}

// resolve converts a qualified Go type to TypeScript. names holds the TS name
// of every emitted type.
func (m *model) resolve(goType string, names map[string]string) string {
	clean := strings.TrimPrefix(goType, "*")

	if ts, ok := builtinTypes[clean]; ok {
		return ts
	}
	if ts, ok := external[clean]; ok {
		return ts
	}
	if inner, ok := strings.CutPrefix(clean, "[]"); ok {
		elem := m.resolve(inner, names)
		if strings.Contains(elem, " | ") {
			elem = "(" + elem + ")"
		}
		return elem + "[]"
	}
	if strings.HasPrefix(clean, "map[") {
		end := strings.Index(clean, "]")
		return "Record<string, " + m.resolve(clean[end+1:], names) + ">"
	}
	if ts, ok := names[clean]; ok {
		return ts
	}
	if vals := m.consts[clean]; len(vals) > 0 {
		return unionLiteral(vals)
	}
	if underlying, ok := m.aliases[clean]; ok {
		return m.resolve(underlying, names)
	}
	return "unknown"
}

// unionLiteral returns a TS union of string literals, e.g. "'A' | 'B'".
func unionLiteral(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, " | ")
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "typegen: "+format+"\n", args...)
	os.Exit(1)
}
