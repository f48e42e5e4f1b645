package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/mbolis/quick-apply/model"
	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed default_roles.json
var defaultRoles []byte

//go:embed schema.json
var schema []byte

var ErrInvalid = errors.New("invalid role catalog")

// Catalog is the read-only role table the form and the scorers work from.
type Catalog struct {
	model.Catalog
	byName map[string]int
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(defaultRoles)); err != nil {
		return nil, fmt.Errorf("read default catalog: %w", err)
	}
	return fromViper(v)
}

// Load reads a catalog file in any format viper understands; an empty path
// selects the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Catalog, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(v.AllSettings()),
	)
	if err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}

	c := &Catalog{}
	if err := v.Unmarshal(&c.Catalog); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c.byName = make(map[string]int, len(c.Roles))
	for i, r := range c.Roles {
		if _, dup := c.byName[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", ErrInvalid, r.Name)
		}
		c.byName[r.Name] = i
	}
	return c, nil
}

func (c *Catalog) Lookup(name string) (model.Role, bool) {
	i, ok := c.byName[name]
	if !ok {
		return model.Role{}, false
	}
	return c.Roles[i], true
}

func (c *Catalog) HasQualification(q string) bool {
	for _, known := range c.Qualifications {
		if known == q {
			return true
		}
	}
	return false
}

func (c *Catalog) RoleNames() []string {
	names := make([]string, len(c.Roles))
	for i, r := range c.Roles {
		names[i] = r.Name
	}
	return names
}
