package utils

import (
	"path"
	"strings"
)

const evalSuffix = "_faithfulness_eval"

// DeriveOutputPath maps an input collection path to the path its evaluated
// counterpart is written to. The last "_splitted" segment of the file stem
// becomes "_faithfulness_eval"; when no such segment exists the suffix is
// appended instead. Directory, object URL prefix and extension chains such
// as ".yaml.zst" are preserved.
func DeriveOutputPath(inputPath string) string {
	dir := ""
	base := inputPath
	if idx := strings.LastIndex(inputPath, "/"); idx >= 0 {
		dir = inputPath[:idx+1]
		base = inputPath[idx+1:]
	}

	stem := base
	ext := ""
	for {
		e := path.Ext(stem)
		if e != ".zst" && e != ".yaml" && e != ".yml" {
			break
		}
		ext = e + ext
		stem = strings.TrimSuffix(stem, e)
	}

	if idx := strings.LastIndex(stem, "_splitted"); idx >= 0 {
		stem = stem[:idx] + evalSuffix + stem[idx+len("_splitted"):]
	} else {
		stem += evalSuffix
	}

	return dir + stem + ext
}
