package jsonfig

// PropertyDefinition holds the configuration facts for one member of an
// entity. It is mutated only by the builders' commit phase; once the owning
// entity definition is frozen every setter fails with a *ConfigError.
type PropertyDefinition struct {
	owner        *EntityDefinition
	member       string
	jsonName     string // "" means no override
	order        int
	hasOrder     bool
	ignored      bool
	required     bool
	backingField string // "" means no redirection
	converter    *ConverterDefinition
}

func (p *PropertyDefinition) Member() string { return p.member }

// JSONName returns the explicit name override, or "" when the member follows
// the global naming convention.
func (p *PropertyDefinition) JSONName() string { return p.jsonName }

func (p *PropertyDefinition) Order() (int, bool)             { return p.order, p.hasOrder }
func (p *PropertyDefinition) Ignored() bool                  { return p.ignored }
func (p *PropertyDefinition) Required() bool                 { return p.required }
func (p *PropertyDefinition) BackingField() string           { return p.backingField }
func (p *PropertyDefinition) Converter() *ConverterDefinition { return p.converter }

// EffectiveName resolves the JSON key for this member: the explicit override
// when present, otherwise the naming convention applied to the member name.
func (p *PropertyDefinition) EffectiveName(c NamingConvention) string {
	if p.jsonName != "" {
		return p.jsonName
	}
	return c.Apply(p.member)
}

func (p *PropertyDefinition) SetJSONName(name string) error {
	if err := p.owner.ensureMutable(p.member); err != nil {
		return err
	}
	p.jsonName = name
	return nil
}

func (p *PropertyDefinition) SetOrder(n int) error {
	if err := p.owner.ensureMutable(p.member); err != nil {
		return err
	}
	p.order, p.hasOrder = n, true
	return nil
}

func (p *PropertyDefinition) SetIgnored(v bool) error {
	if err := p.owner.ensureMutable(p.member); err != nil {
		return err
	}
	p.ignored = v
	return nil
}

func (p *PropertyDefinition) SetRequired(v bool) error {
	if err := p.owner.ensureMutable(p.member); err != nil {
		return err
	}
	p.required = v
	return nil
}

func (p *PropertyDefinition) SetBackingField(field string) error {
	if err := p.owner.ensureMutable(p.member); err != nil {
		return err
	}
	p.backingField = field
	return nil
}

func (p *PropertyDefinition) SetConverter(d *ConverterDefinition) error {
	if err := p.owner.ensureMutable(p.member); err != nil {
		return err
	}
	p.converter = d
	return nil
}
