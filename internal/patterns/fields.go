package patterns

import (
	"regexp"
	"strings"

	"notaria/pkg/models"
)

// Match is one regex hit. Value is capture group 1 when the expression has
// one, else the whole match; Start and End are byte offsets of Value.
type Match struct {
	Value      string
	Start, End int
}

// FindAll returns every match of re in text.
func FindAll(re *regexp.Regexp, text string) []Match {
	group := 0
	if re.NumSubexp() > 0 {
		group = 1
	}
	var out []Match
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[2*group], loc[2*group+1]
		if start < 0 {
			continue
		}
		out = append(out, Match{Value: strings.TrimSpace(text[start:end]), Start: start, End: end})
	}
	return out
}

// Overlaps reports whether m intersects any of the spans.
func (m Match) Overlaps(spans []Match) bool {
	for _, s := range spans {
		if m.Start < s.End && s.Start < m.End {
			return true
		}
	}
	return false
}

// NewField scores a candidate: base confidence by type, validation status
// from the type's validator, and the invalid penalty when it fails.
func (l *Library) NewField(name string, fieldType models.FieldType, value string, start, end int) models.ExtractedField {
	conf, ok := l.cfg.BaseConfidence[fieldType]
	if !ok {
		conf = l.cfg.DefaultConfidence
	}
	status := Status(fieldType, value)
	if status == models.ValidationInvalid {
		conf *= l.cfg.InvalidPenalty
	}
	return models.ExtractedField{
		FieldName:        name,
		Value:            value,
		Confidence:       clamp01(conf),
		Type:             fieldType,
		ValidationStatus: status,
		Location:         &models.Location{Offset: start, Length: end - start},
	}
}

// FieldFromMatch is NewField over a Match.
func (l *Library) FieldFromMatch(name string, fieldType models.FieldType, m Match) models.ExtractedField {
	return l.NewField(name, fieldType, m.Value, m.Start, m.End)
}

// Scale returns f with its confidence multiplied by factor and clamped to [0,1].
func Scale(f models.ExtractedField, factor float64) models.ExtractedField {
	f.Confidence = clamp01(f.Confidence * factor)
	return f
}

// Boost returns f with delta added to its confidence, clamped to [0,1].
func Boost(f models.ExtractedField, delta float64) models.ExtractedField {
	f.Confidence = clamp01(f.Confidence + delta)
	return f
}

// CedulaCandidates returns 10 digit ID numbers (hyphen removed). Numbers that
// fail the checksum are kept only when an ID keyword is nearby; mobile numbers
// that fail it are left to the phone pass. A nil ctx is built on demand.
func (l *Library) CedulaCandidates(text string, ctx *Context) []Match {
	if ctx == nil {
		ctx = NewContext(text, l.cfg.ContextWindow, l.CedulaKeywords)
	}
	var out []Match
	for _, m := range FindAll(l.Cedula, text) {
		m.Value = strings.ReplaceAll(m.Value, "-", "")
		if !ValidateCedula(m.Value) {
			if strings.HasPrefix(m.Value, "09") || !ctx.Near(l.CedulaKeywords.Label, m.Start, m.End) {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

// ExtractCommon runs the passes shared by every document type: IDs, plates,
// contact data, dates, amounts, names, nationalities and addresses.
func (l *Library) ExtractCommon(text string) []models.ExtractedField {
	var fields []models.ExtractedField
	ctx := NewContext(text, l.cfg.ContextWindow, l.CedulaKeywords, l.RUCKeywords)

	cedulas := l.CedulaCandidates(text, ctx)
	for _, m := range cedulas {
		fields = append(fields, l.FieldFromMatch("cedula", models.FieldCedula, m))
	}

	for _, m := range FindAll(l.RUC, text) {
		if !ValidateRUC(m.Value) && !ctx.Near(l.RUCKeywords.Label, m.Start, m.End) {
			continue
		}
		fields = append(fields, l.FieldFromMatch("ruc", models.FieldRUC, m))
	}

	for _, m := range FindAll(l.Pasaporte, text) {
		if strings.IndexAny(m.Value, "0123456789") < 0 {
			continue
		}
		fields = append(fields, l.FieldFromMatch("pasaporte", models.FieldPasaporte, m))
	}

	for _, m := range FindAll(l.Placa, text) {
		fields = append(fields, l.FieldFromMatch("placa", models.FieldPlaca, m))
	}

	// Guayas cédulas start with 09 like mobile numbers
	for _, m := range FindAll(l.Telefono, text) {
		if m.Overlaps(cedulas) {
			continue
		}
		m.Value = "0" + m.Value
		fields = append(fields, l.FieldFromMatch("telefono", models.FieldTelefono, m))
	}

	for _, m := range FindAll(l.Email, text) {
		fields = append(fields, l.FieldFromMatch("email", models.FieldEmail, m))
	}

	for _, m := range l.Dates(text) {
		fields = append(fields, l.FieldFromMatch("fecha", models.FieldFecha, m))
	}

	for _, m := range FindAll(l.Monto, text) {
		fields = append(fields, l.FieldFromMatch("monto", models.FieldMonto, m))
	}

	for _, m := range l.Names(l.Nombre, text) {
		fields = append(fields, l.FieldFromMatch("nombre", models.FieldNombre, m))
	}

	for _, m := range FindAll(l.Nacionalidad, text) {
		m.Value = strings.ToUpper(m.Value)
		fields = append(fields, l.FieldFromMatch("nacionalidad", models.FieldNacionalidad, m))
	}

	for _, m := range FindAll(l.Direccion, text) {
		if len(m.Value) < 5 {
			continue
		}
		fields = append(fields, l.FieldFromMatch("direccion", models.FieldDireccion, m))
	}

	return fields
}

// Dates returns every parseable date with Value normalized to YYYY-MM-DD.
// Candidates that are not real calendar dates are dropped.
func (l *Library) Dates(text string) []Match {
	var out []Match
	for _, re := range []*regexp.Regexp{l.FechaTexto, l.FechaNumero} {
		for _, m := range FindAll(re, text) {
			iso, ok := ParseDate(m.Value)
			if !ok {
				continue
			}
			m.Value = iso
			out = append(out, m)
		}
	}
	return out
}

// Names runs a name expression and cleans each hit, dropping those left with
// fewer than two words.
func (l *Library) Names(re *regexp.Regexp, text string) []Match {
	var out []Match
	for _, m := range FindAll(re, text) {
		name := CleanName(m.Value)
		if name == "" {
			continue
		}
		if off := strings.Index(text[m.Start:m.End], strings.Fields(name)[0]); off > 0 {
			m.Start += off
		}
		m.End = m.Start + len(name)
		m.Value = name
		out = append(out, m)
	}
	return out
}

// nameStops end a person name; nameTrailers are connectors that cannot end one.
var (
	nameStops = toSet("CON", "CEDULA", "CI", "C", "PORTADOR", "PORTADORA", "MAYOR", "MAYORES", "CASADO", "CASADA",
		"SOLTERO", "SOLTERA", "DIVORCIADO", "DIVORCIADA", "VIUDO", "VIUDA", "ECUATORIANO", "ECUATORIANA",
		"DOMICILIADO", "DOMICILIADA", "QUIEN", "QUIENES", "IDENTIFICADO", "IDENTIFICADA", "EN", "Y", "NUMERO",
		"NO", "NRO", "POR", "AL", "EL", "COMO", "RUC", "PLACA", "MARCA", "MOTOR", "CHASIS", "MODELO", "ANO",
		"COLOR", "PASAPORTE", "ESTADO", "CIVIL", "NACIONALIDAD", "A", "SU", "SUS", "PARA", "QUE", "COMPRADOR",
		"VENDEDOR", "COMPRADORA", "VENDEDORA", "SENOR", "SENORA", "DON", "DONA", "RESPECTIVAMENTE", "HABIL",
		"LEGALMENTE", "CAPAZ", "CAPACES", "DECLARA", "DECLARAN", "MANIFIESTA", "OTORGA", "OTORGAN", "VENDE",
		"COMPRA", "DONA", "PROVINCIA", "CANTON", "REPRESENTADO", "REPRESENTADA", "DERECHOS", "PROPIOS")
	nameTrailers = toSet("DE", "DEL", "LA", "LAS", "LOS")
	nameLeading  = toSet("SENOR", "SENORA", "SENORES", "SENORAS", "SR", "SRA", "DON", "DONA", "EL", "LA", "LOS", "LAS")
)

// CleanName drops leading titles, cuts a captured name at the first stop word
// and strips trailing connectors. It returns "" when fewer than two words remain.
func CleanName(raw string) string {
	tokens := strings.Fields(raw)
	for len(tokens) > 0 && nameLeading[strings.TrimSuffix(Fold(tokens[0]), ".")] {
		tokens = tokens[1:]
	}
	kept := tokens[:0:0]
	for _, t := range tokens {
		if nameStops[Fold(t)] {
			break
		}
		kept = append(kept, t)
	}
	for len(kept) > 0 && nameTrailers[Fold(kept[len(kept)-1])] {
		kept = kept[:len(kept)-1]
	}
	if len(kept) < 2 {
		return ""
	}
	return strings.Join(kept, " ")
}

// RoleAssignment ties an ID number to a party role.
type RoleAssignment struct {
	Role    string
	ID      Match
	Name    *Match
	Labeled bool
}

// AssignRoles gives every valid cédula the role of its nearest role keyword.
// IDs with no keyword within the window take defaults in order of appearance,
// so the first unlabeled ID is the first default role, the second the next.
// The closest preceding name within the window is attached when present.
func (l *Library) AssignRoles(text string, ids []Match, defaults []string) []RoleAssignment {
	ctx := NewContext(text, l.cfg.ContextWindow, l.RoleKeywords...)
	names := l.Names(l.Nombre, text)

	var out []RoleAssignment
	unlabeled := 0
	for _, id := range ids {
		if !ValidateCedula(id.Value) {
			continue
		}
		ra := RoleAssignment{ID: id}
		if role, _, ok := ctx.Nearest(id.Start, id.End); ok {
			ra.Role, ra.Labeled = role, true
		} else if unlabeled < len(defaults) {
			ra.Role = defaults[unlabeled]
			unlabeled++
		} else {
			continue
		}
		ra.Name = nearestPrecedingName(names, id, l.cfg.ContextWindow)
		out = append(out, ra)
	}
	return out
}

func nearestPrecedingName(names []Match, id Match, window int) *Match {
	var best *Match
	for i := range names {
		n := names[i]
		if n.End > id.Start || id.Start-n.End > window {
			continue
		}
		if best == nil || n.End > best.End {
			best = &names[i]
		}
	}
	return best
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
