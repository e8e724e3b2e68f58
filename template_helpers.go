package authcard

import "maps"

// TemplateHelpers returns the data shared by every card template.
//
// In templates:
//
//	{{ brand_name }}
//	{% if page.Mode == modes.register %}
func TemplateHelpers(brand Brand) map[string]any {
	return map[string]any{
		"brand_name":    brand.Name,
		"brand_tagline": brand.Tagline,
		"modes": map[string]string{
			"sign_in":  string(ModeSignIn),
			"register": string(ModeRegister),
			"success":  string(ModeRegistrationSuccess),
		},
		"triggers": map[string]string{
			"tab":  string(TriggerTab),
			"link": string(TriggerLink),
		},
	}
}

// TemplateHelpersWith merges extra data over the shared helpers.
func TemplateHelpersWith(brand Brand, extra map[string]any) map[string]any {
	helpers := TemplateHelpers(brand)
	maps.Copy(helpers, extra)
	return helpers
}
