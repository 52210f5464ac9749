// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scan

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xWTF/chardet"
	"golang.org/x/text/unicode/norm"

	"github.com/kraklabs/skillscan/pkg/model"
)

// textExtensions whitelists the files S1 treats as text for structural and
// typographic analysis.
var textExtensions = map[string]bool{
	".md": true, ".txt": true, ".py": true, ".js": true, ".ts": true,
	".jsx": true, ".tsx": true, ".sh": true, ".bash": true, ".json": true,
	".toml": true, ".yml": true, ".yaml": true, ".cfg": true, ".ini": true,
}

// hiddenFileAllowList are dotfiles permitted regardless of prefix.
var hiddenFileAllowList = map[string]bool{
	".gitignore": true, ".editorconfig": true, ".prettierrc": true,
}

// hiddenFileAllowedPrefixes are dotfile prefixes considered conventional.
var hiddenFileAllowedPrefixes = []string{".env.", ".git", ".docker", ".eslintrc"}

// cyrillicHomoglyphs maps visually-ASCII-identical Cyrillic runes to the
// Latin letter they imitate.
var cyrillicHomoglyphs = map[rune]rune{
	'а': 'a', 'е': 'e', 'о': 'o', 'р': 'p', 'с': 'c',
	'у': 'y', 'х': 'x', 'і': 'i', 'ј': 'j', 'ѕ': 's',
	'А': 'A', 'В': 'B', 'Е': 'E', 'К': 'K', 'М': 'M',
	'Н': 'H', 'О': 'O', 'Р': 'P', 'С': 'C', 'Т': 'T', 'Х': 'X',
}

// RunStructure implements S1: Unicode safety, encoding detection, and
// structural/typographic checks over whitelisted text files.
func RunStructure(_ context.Context, sb *Sandbox) model.StageResult {
	return timed(model.StageStructure, func() (model.StageStatus, []model.Finding, string) {
		var findings []model.Finding

		if !containsPath(sb.FileList, "SKILL.md") {
			findings = append(findings, model.Finding{
				Stage: model.StageStructure, Severity: model.SeverityHigh,
				Type: "missing_skill_md", Description: "SKILL.md is missing from the package root",
			})
		}

		for _, rel := range sb.FileList {
			base := filepath.Base(rel)
			if strings.HasPrefix(base, ".") {
				findings = append(findings, checkHiddenFile(rel)...)
			}

			ext := strings.ToLower(filepath.Ext(rel))
			if !textExtensions[ext] {
				continue
			}

			raw, err := sb.ReadFile(rel)
			if err != nil {
				continue
			}
			findings = append(findings, checkTextFile(rel, raw)...)
		}

		return statusFromFindings(findings), findings, ""
	})
}

func containsPath(fileList []string, name string) bool {
	for _, rel := range fileList {
		if rel == name {
			return true
		}
	}
	return false
}

func checkHiddenFile(rel string) []model.Finding {
	base := filepath.Base(rel)
	if hiddenFileAllowList[base] {
		return nil
	}
	for _, prefix := range hiddenFileAllowedPrefixes {
		if strings.HasPrefix(base, prefix) {
			return nil
		}
	}
	return []model.Finding{{
		Stage: model.StageStructure, Severity: model.SeverityLow,
		Type: "hidden_dotfile", Description: "unrecognised hidden file: " + base,
		Location: rel,
	}}
}

func checkTextFile(rel string, raw []byte) []model.Finding {
	var findings []model.Finding

	if !utf8.Valid(raw) {
		if enc := detectEncoding(raw); enc != "" && enc != "UTF-8" && enc != "ASCII" {
			findings = append(findings, model.Finding{
				Stage: model.StageStructure, Severity: model.SeverityMedium,
				Type: "non_utf8_encoding", Description: "file is encoded as " + enc + ", not UTF-8",
				Location: rel,
			})
		}
		// Non-UTF-8 content cannot be meaningfully scanned rune-by-rune below.
		return findings
	}

	content := string(raw)

	if loc := findBidiOverride(content); loc >= 0 {
		findings = append(findings, model.Finding{
			Stage: model.StageStructure, Severity: model.SeverityCritical,
			Type: "bidi_override", Description: "Unicode bidirectional override character present",
			Location: lineLocation(rel, content, loc),
		})
	}

	if loc := findZeroWidth(content); loc >= 0 {
		findings = append(findings, model.Finding{
			Stage: model.StageStructure, Severity: model.SeverityMedium,
			Type: "zero_width_char", Description: "zero-width or BOM character present",
			Location: lineLocation(rel, content, loc),
		})
	}

	if loc := findHomoglyph(content); loc >= 0 {
		findings = append(findings, model.Finding{
			Stage: model.StageStructure, Severity: model.SeverityHigh,
			Type: "homoglyph", Description: "Cyrillic homoglyph adjacent to ASCII text",
			Location: lineLocation(rel, content, loc), Confidence: model.Ptr(0.8),
		})
	}

	if loc, ok := nfkcMismatchLocation(content); ok {
		findings = append(findings, model.Finding{
			Stage: model.StageStructure, Severity: model.SeverityMedium,
			Type: "nfkc_mismatch", Description: "NFKC normalisation changes file content (adversarial encoding)",
			Location: lineLocation(rel, content, loc),
		})
	}

	return findings
}

// isBidiOverride reports whether r is one of the Unicode bidirectional
// control characters named in the component design (U+202A..U+202E,
// U+2066..U+2069).
func isBidiOverride(r rune) bool {
	return (r >= 0x202A && r <= 0x202E) || (r >= 0x2066 && r <= 0x2069)
}

func isZeroWidth(r rune) bool {
	return (r >= 0x200B && r <= 0x200D) || r == 0xFEFF
}

func findBidiOverride(s string) int {
	for i, r := range s {
		if isBidiOverride(r) {
			return i
		}
	}
	return -1
}

func findZeroWidth(s string) int {
	for i, r := range s {
		if isZeroWidth(r) {
			return i
		}
	}
	return -1
}

// findHomoglyph locates a Cyrillic homoglyph rune immediately adjacent (on
// either side) to an ASCII letter.
func findHomoglyph(s string) int {
	runes := []rune(s)
	for i, r := range runes {
		if _, ok := cyrillicHomoglyphs[r]; !ok {
			continue
		}
		if (i > 0 && isASCIILetter(runes[i-1])) || (i+1 < len(runes) && isASCIILetter(runes[i+1])) {
			return byteOffsetOfRune(s, i)
		}
	}
	return -1
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func byteOffsetOfRune(s string, runeIdx int) int {
	count := 0
	for i := range s {
		if count == runeIdx {
			return i
		}
		count++
	}
	return len(s)
}

// nfkcMismatchLocation reports the byte offset of the first codepoint where
// s differs from its NFKC normal form.
func nfkcMismatchLocation(s string) (int, bool) {
	normalized := norm.NFKC.String(s)
	if normalized == s {
		return 0, false
	}
	orig := []rune(s)
	normRunes := []rune(normalized)
	for i := 0; i < len(orig) && i < len(normRunes); i++ {
		if orig[i] != normRunes[i] {
			return byteOffsetOfRune(s, i), true
		}
	}
	return byteOffsetOfRune(s, minInt(len(orig), len(normRunes))), true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// detectEncoding returns a best-guess charset name for non-UTF-8 content.
func detectEncoding(raw []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(raw)
	if err != nil || result == nil {
		return ""
	}
	return result.Charset
}

// lineLocation converts a byte offset into content into a "path:line"
// location string, 1-based.
func lineLocation(rel, content string, byteOffset int) string {
	if byteOffset < 0 || byteOffset > len(content) {
		return rel
	}
	line := 1 + strings.Count(content[:byteOffset], "\n")
	return rel + ":" + strconv.Itoa(line)
}
