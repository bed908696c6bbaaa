package chardef

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

//go:embed data/*.yaml
var dataFS embed.FS

// Library holds every selectable compiled character.
type Library struct {
	chars map[string]*Character
	names []string
}

// Get returns a character by name, case-insensitively.
func (l *Library) Get(name string) (*Character, bool) {
	c, ok := l.chars[strings.ToLower(name)]
	return c, ok
}

// Names lists the selectable characters in sorted order.
func (l *Library) Names() []string { return l.names }

// LoadEmbedded compiles the definitions shipped with the binary.
func LoadEmbedded() (*Library, error) {
	files, err := readFiles(dataFS, "data")
	if err != nil {
		return nil, err
	}
	return build(files)
}

// LoadDir compiles definitions from dir. Files on disk replace embedded
// files of the same character name; embedded ones fill the gaps, so a
// directory may hold just one override.
func LoadDir(dir string) (*Library, error) {
	files, err := readFiles(dataFS, "data")
	if err != nil {
		return nil, err
	}
	disk, err := readFiles(os.DirFS(dir), ".")
	if err != nil {
		return nil, errors.Wrapf(err, "chardef: read %s", dir)
	}
	for name, f := range disk {
		files[name] = f
	}
	return build(files)
}

// LoadFS compiles every definition found in dir of fsys.
func LoadFS(fsys fs.FS, dir string) (*Library, error) {
	files, err := readFiles(fsys, dir)
	if err != nil {
		return nil, err
	}
	return build(files)
}

func readFiles(fsys fs.FS, dir string) (map[string]*fileSpec, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]*fileSpec, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isDefinitionFile(e.Name()) {
			continue
		}
		p := path.Join(dir, e.Name())
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, errors.Wrapf(err, "chardef: load %s", p)
		}
		f, err := parseFile(data)
		if err != nil {
			return nil, errors.Wrapf(err, "chardef: unmarshal %s", p)
		}
		if f.Name == "" {
			f.Name = strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		}
		f.Name = strings.ToLower(f.Name)
		files[f.Name] = f
	}
	return files, nil
}

func build(files map[string]*fileSpec) (*Library, error) {
	resolved := make(map[string]*Definition, len(files))
	lib := &Library{chars: make(map[string]*Character)}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, err := resolve(name, files, resolved, map[string]bool{})
		if err != nil {
			return nil, err
		}
		if files[name].Abstract {
			continue
		}
		c, err := Compile(def)
		if err != nil {
			return nil, err
		}
		lib.chars[name] = c
		lib.names = append(lib.names, name)
	}
	return lib, nil
}

func resolve(name string, files map[string]*fileSpec, done map[string]*Definition, visiting map[string]bool) (*Definition, error) {
	if def, ok := done[name]; ok {
		return def, nil
	}
	f, ok := files[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBase, "%q", name)
	}
	if visiting[name] {
		return nil, errors.Wrapf(ErrBaseCycle, "at %q", name)
	}
	visiting[name] = true

	var base *Definition
	if f.Base != "" {
		b, err := resolve(strings.ToLower(f.Base), files, done, visiting)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: base", name)
		}
		base = b
	}
	def, err := Merge(base, f)
	if err != nil {
		return nil, err
	}
	done[name] = def
	return def, nil
}

func isDefinitionFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
