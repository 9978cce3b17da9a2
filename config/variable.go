package config

import "fmt"

// Variable declares a value referenced as vars.<name>. Secrets must come
// from vars.txt or the environment.
type Variable struct {
	Name        string `hcl:"name,label"`
	Description string `hcl:"description,optional"`
	Default     string `hcl:"default,optional"`
	Secret      bool   `hcl:"secret,optional"`
}

func (v *Variable) Validate() error {
	if v.Secret && v.Default != "" {
		return fmt.Errorf("Invalid secret; Secret variable '%s' cannot have a default value set in config", v.Name)
	}
	return nil
}

// Masked returns value for display, hiding it when the variable is secret.
func (v *Variable) Masked(value string) string {
	if !v.Secret || value == "" {
		return value
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}
