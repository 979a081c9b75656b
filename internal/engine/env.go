package engine

import (
	"sort"
	"strings"
)

// resolveEnv merges env layers in order and interpolates each value, so a
// job can set e.g. IMAGE: ${{ matrix.image }}. Later layers win.
func resolveEnv(exprCtx ExprContext, layers ...map[string]string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			resolved, err := exprCtx.Interpolate(v)
			if err != nil {
				return nil, err
			}
			merged[k] = resolved
		}
	}
	return merged, nil
}

// overlayEnviron applies maps of overrides on top of a process-style
// environment slice and returns a sorted KEY=value slice.
func overlayEnviron(base []string, overlays ...map[string]string) []string {
	merged := make(map[string]string, len(base))
	for _, kv := range base {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for _, overlay := range overlays {
		for k, v := range overlay {
			merged[k] = v
		}
	}
	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
