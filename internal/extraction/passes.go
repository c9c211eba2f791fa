package extraction

import (
	"strings"

	"notaria/internal/patterns"
	"notaria/pkg/models"
)

// roleFields assigns a party role to every valid cédula and emits
// "<role>_cedula" plus, when a name precedes it, "<role>_nombre".
func roleFields(lib *patterns.Library, text string, defaults []string) []models.ExtractedField {
	ids := lib.CedulaCandidates(text, nil)

	var out []models.ExtractedField
	for _, ra := range lib.AssignRoles(text, ids, defaults) {
		out = append(out, lib.FieldFromMatch(RoleField(ra.Role, "cedula"), models.FieldCedula, ra.ID))
		if ra.Name != nil {
			out = append(out, lib.FieldFromMatch(RoleField(ra.Role, "nombre"), models.FieldNombre, *ra.Name))
		}
	}
	return out
}

// entityLeading are words the suffix expression swallows before a company name.
var entityLeading = map[string]bool{
	"LA": true, "EL": true, "LAS": true, "LOS": true, "Y": true, "DE": true, "A": true, "ENTRE": true,
	"COMPANIA": true, "SOCIEDAD": true, "EMPRESA": true, "DENOMINADA": true, "COMPARECE": true,
	"COMPARECEN": true, "REPRESENTANTE": true, "LEGAL": true, "GERENTE": true,
}

// entityFields finds legal entities written as "NAME S.A." / "NAME CIA. LTDA."
// and as "FIDEICOMISO NAME", "CONSORCIO NAME" and similar.
func entityFields(lib *patterns.Library, text string) []models.ExtractedField {
	var out []models.ExtractedField

	for _, loc := range lib.EntidadSufijo.FindAllStringSubmatchIndex(text, -1) {
		raw := text[loc[2]:loc[3]]
		tokens := strings.Fields(raw)
		skipped := 0
		for len(tokens) > 1 && entityLeading[patterns.Fold(tokens[0])] {
			skipped += strings.Index(raw[skipped:], tokens[0]) + len(tokens[0])
			tokens = tokens[1:]
		}
		start := loc[2] + skipped + strings.Index(raw[skipped:], tokens[0])
		name := strings.Join(tokens, " ") + " " + strings.Join(strings.Fields(text[loc[4]:loc[5]]), " ")
		out = append(out, lib.NewField(FieldRazonSocial, models.FieldEntidadLegal, name, start, loc[5]))
	}

	for _, loc := range lib.EntidadPrefijo.FindAllStringSubmatchIndex(text, -1) {
		kind := patterns.Fold(text[loc[2]:loc[3]])
		name := kind + " " + strings.Join(strings.Fields(text[loc[4]:loc[5]]), " ")
		out = append(out, lib.NewField(FieldEntidad, models.FieldEntidadLegal, name, loc[0], loc[5]))
	}
	return out
}

var placeStops = map[string]bool{
	"PROVINCIA": true, "EN": true, "Y": true, "CON": true, "REPUBLICA": true, "ECUADOR": true,
	"NOTARIA": true, "ANTE": true, "EL": true, "A": true, "SE": true, "AL": true, "POR": true,
}

// cleanPlace cuts a captured place name at the first word that cannot be
// part of it.
func cleanPlace(raw string) string {
	var kept []string
	for _, t := range strings.Fields(raw) {
		if placeStops[patterns.Fold(t)] {
			break
		}
		kept = append(kept, t)
	}
	for len(kept) > 0 {
		last := patterns.Fold(kept[len(kept)-1])
		if last != "DE" && last != "DEL" && last != "LA" && last != "LOS" {
			break
		}
		kept = kept[:len(kept)-1]
	}
	return strings.Join(kept, " ")
}

// locationFields finds the province, canton and notary office.
func locationFields(lib *patterns.Library, text string) []models.ExtractedField {
	var out []models.ExtractedField

	for _, m := range patterns.FindAll(lib.Provincia, text) {
		m.Value = strings.Join(strings.Fields(strings.ToUpper(m.Value)), " ")
		out = append(out, lib.FieldFromMatch(FieldProvincia, models.FieldUbicacion, m))
	}

	for _, m := range patterns.FindAll(lib.Canton, text) {
		if m.Value = cleanPlace(m.Value); m.Value == "" {
			continue
		}
		m.End = m.Start + len(m.Value)
		out = append(out, lib.FieldFromMatch(FieldCanton, models.FieldUbicacion, m))
	}

	for _, m := range patterns.FindAll(lib.Notaria, text) {
		m.Value = strings.Join(strings.Fields(strings.ToUpper(m.Value)), " ")
		out = append(out, lib.FieldFromMatch(FieldNotaria, models.FieldNumeroNotarial, m))
	}
	return out
}

// paymentFields reads an explicit "FORMA DE PAGO" clause, falling back to
// the first payment keyword at a lower confidence.
func paymentFields(lib *patterns.Library, text string) []models.ExtractedField {
	if ms := patterns.FindAll(lib.FormaPago, text); len(ms) > 0 {
		var out []models.ExtractedField
		for _, m := range ms {
			out = append(out, lib.FieldFromMatch(FieldFormaPago, models.FieldFormaPago, m))
		}
		return out
	}
	if word, at, ok := lib.PagoKeywords.Find(text); ok {
		f := lib.NewField(FieldFormaPago, models.FieldFormaPago, patterns.Fold(word), at, at+len(word))
		return []models.ExtractedField{patterns.Scale(f, 0.8)}
	}
	return nil
}

// amountsByContext labels every amount with the nearest keyword set among
// sets. Amounts with no keyword in the window are skipped.
func amountsByContext(lib *patterns.Library, text string, sets ...*patterns.Keywords) []models.ExtractedField {
	ctx := patterns.NewContext(text, lib.Window(), sets...)

	var out []models.ExtractedField
	for _, m := range patterns.FindAll(lib.Monto, text) {
		label, _, ok := ctx.Nearest(m.Start, m.End)
		if !ok {
			continue
		}
		out = append(out, lib.FieldFromMatch(label, models.FieldMonto, m))
	}
	return out
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}
