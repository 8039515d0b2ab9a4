package pageforge

// StyleProperties is a flat bag of visual attributes. Fields are pointers so
// that "unset" is distinguishable from a zero value; only set fields
// participate in the cascade.
type StyleProperties struct {
	FontFamily  *string  `json:"fontFamily,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontWeight  *string  `json:"fontWeight,omitempty"`
	FontStyle   *string  `json:"fontStyle,omitempty"`
	Color       *string  `json:"color,omitempty"`
	Background  *string  `json:"background,omitempty"`
	LineHeight  *float64 `json:"lineHeight,omitempty"`
	Margin      *float64 `json:"margin,omitempty"`
	Padding     *float64 `json:"padding,omitempty"`
	BorderWidth *float64 `json:"borderWidth,omitempty"`
	BorderColor *string  `json:"borderColor,omitempty"`
	Alignment   *string  `json:"alignment,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
}

// CascadeStyle overlays the override's set fields onto the parent's resolved
// style. The override wins on conflict; parent values are retained wherever
// the override leaves a field unset. The inputs are never modified.
func CascadeStyle(parent StyleProperties, override *StyleProperties) StyleProperties {
	resolved := parent
	if override == nil {
		return resolved
	}
	if override.FontFamily != nil {
		resolved.FontFamily = override.FontFamily
	}
	if override.FontSize != nil {
		resolved.FontSize = override.FontSize
	}
	if override.FontWeight != nil {
		resolved.FontWeight = override.FontWeight
	}
	if override.FontStyle != nil {
		resolved.FontStyle = override.FontStyle
	}
	if override.Color != nil {
		resolved.Color = override.Color
	}
	if override.Background != nil {
		resolved.Background = override.Background
	}
	if override.LineHeight != nil {
		resolved.LineHeight = override.LineHeight
	}
	if override.Margin != nil {
		resolved.Margin = override.Margin
	}
	if override.Padding != nil {
		resolved.Padding = override.Padding
	}
	if override.BorderWidth != nil {
		resolved.BorderWidth = override.BorderWidth
	}
	if override.BorderColor != nil {
		resolved.BorderColor = override.BorderColor
	}
	if override.Alignment != nil {
		resolved.Alignment = override.Alignment
	}
	if override.Opacity != nil {
		resolved.Opacity = override.Opacity
	}
	return resolved
}
