package fdw

import (
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/ainilili/colstore/catalog"
	"github.com/ainilili/colstore/errs"
	"github.com/ainilili/colstore/file"
)

const (
	sortByPathname     = "PATHNAME"
	sortByDateModified = "DATE_MODIFIED"
	sortByRegex        = "REGEX"
	sortByRegexDate    = "REGEX_DATE"
	sortByRegexNumber  = "REGEX_NUMBER"
)

type pathOptions struct {
	filter    string
	sortBy    string
	sortRegex string
}

func parsePathOptions(t *catalog.ForeignTable) pathOptions {
	opts := pathOptions{sortBy: sortByPathname}
	if v, ok := t.Option(RegexPathFilterKey); ok {
		opts.filter = v
	}
	if v, ok := t.Option(FileSortOrderByKey); ok {
		opts.sortBy = strings.ToUpper(v)
	}
	if v, ok := t.Option(FileSortRegexKey); ok {
		opts.sortRegex = v
	}
	return opts
}

// expandPaths resolves a file-path option into the ordered list of
// files a wrapper scans: directories are walked, the path filter is
// applied, and the configured sort order decides scan order.
func expandPaths(path string, opts pathOptions) ([]string, error) {
	fs := file.Fs()
	info, err := fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Configf("file or directory \"%s\" does not exist", path)
		}
		return nil, err
	}

	var paths []string
	mtimes := map[string]int64{}
	if !info.IsDir() {
		paths = []string{path}
		mtimes[path] = info.ModTime().UnixNano()
	} else {
		err = afero.Walk(fs, path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() {
				paths = append(paths, p)
				mtimes[p] = fi.ModTime().UnixNano()
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if opts.filter != "" {
		re, err := regexp.Compile(opts.filter)
		if err != nil {
			return nil, errs.Configf("invalid %s \"%s\": %v", RegexPathFilterKey, opts.filter, err)
		}
		filtered := paths[:0]
		for _, p := range paths {
			if re.MatchString(p) {
				filtered = append(filtered, p)
			}
		}
		paths = filtered
		if len(paths) == 0 {
			return nil, errs.Configf("no files matched the %s \"%s\"", RegexPathFilterKey, opts.filter)
		}
	}

	switch opts.sortBy {
	case sortByPathname:
		sort.Strings(paths)
	case sortByDateModified:
		sort.SliceStable(paths, func(i, j int) bool {
			return mtimes[paths[i]] < mtimes[paths[j]]
		})
	case sortByRegex, sortByRegexDate, sortByRegexNumber:
		re, err := regexp.Compile(opts.sortRegex)
		if err != nil || opts.sortRegex == "" {
			return nil, errs.Configf("sort order %s requires a valid %s", opts.sortBy, FileSortRegexKey)
		}
		key := func(p string) string {
			m := re.FindStringSubmatch(p)
			if m == nil {
				return ""
			}
			return strings.Join(m[1:], "")
		}
		if opts.sortBy == sortByRegexNumber {
			sort.SliceStable(paths, func(i, j int) bool {
				a, _ := strconv.ParseFloat(key(paths[i]), 64)
				b, _ := strconv.ParseFloat(key(paths[j]), 64)
				return a < b
			})
		} else {
			sort.SliceStable(paths, func(i, j int) bool {
				return key(paths[i]) < key(paths[j])
			})
		}
	default:
		return nil, errs.Configf("invalid %s \"%s\". Value must be one of: %s.",
			FileSortOrderByKey, opts.sortBy,
			strings.Join([]string{sortByPathname, sortByDateModified, sortByRegex, sortByRegexDate, sortByRegexNumber}, ", "))
	}
	return paths, nil
}
