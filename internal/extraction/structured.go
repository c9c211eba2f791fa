package extraction

import (
	"sort"
	"strings"

	"notaria/internal/patterns"
	"notaria/pkg/models"
)

// Field names produced by the extractors beyond the shared pattern pass.
const (
	FieldNumeroEscritura    = "numero_escritura"
	FieldRepertorio         = "repertorio"
	FieldFolio              = "folio"
	FieldNotaria            = "notaria"
	FieldCuantia            = "cuantia"
	FieldValorOperacion     = "valor_operacion"
	FieldFormaPago          = "forma_pago"
	FieldArticulo29         = "articulo_29"
	FieldObjeto             = "objeto"
	FieldProvincia          = "provincia"
	FieldCanton             = "canton"
	FieldRazonSocial        = "razon_social"
	FieldEntidad            = "entidad"
	FieldMarca              = "marca"
	FieldModelo             = "modelo"
	FieldAnio               = "anio"
	FieldMotor              = "motor"
	FieldChasis             = "chasis"
	FieldColor              = "color"
	FieldCombustible        = "combustible"
	FieldTransmision        = "transmision"
	FieldPrecio             = "precio"
	FieldFechaTransferencia = "fecha_transferencia"
)

// Role-scoped field names are "<role>_cedula" and "<role>_nombre".
const (
	roleCedulaSuffix = "_cedula"
	roleNombreSuffix = "_nombre"
)

// RoleField returns the field name for a role-scoped value, e.g.
// RoleField("comprador", "cedula") == "comprador_cedula".
func RoleField(role, kind string) string {
	return role + "_" + kind
}

var notarialFields = []string{FieldNumeroEscritura, FieldRepertorio, FieldFolio, FieldNotaria, FieldCuantia,
	FieldValorOperacion, FieldArticulo29, FieldObjeto, FieldProvincia, FieldCanton}

var vehicleFields = []string{FieldMarca, FieldModelo, FieldAnio, "placa", FieldMotor, FieldChasis, FieldColor,
	FieldCombustible, FieldTransmision, FieldPrecio, FieldFechaTransferencia}

// BuildStructuredData folds a deduplicated field list into typed records.
// Fields are expected in descending confidence order, so single-valued slots
// take the most confident candidate. window bounds how far contact data may
// sit from the ID number it is attached to.
func BuildStructuredData(fields []models.ExtractedField, window int) models.StructuredData {
	byName := make(map[string][]models.ExtractedField)
	for _, f := range fields {
		byName[f.FieldName] = append(byName[f.FieldName], f)
	}

	sd := models.StructuredData{
		Persons:   buildPersons(fields, byName, window),
		Companies: buildCompanies(byName, window),
		Notarial:  buildNotarial(byName),
	}
	sd.Vehicle = buildVehicle(byName, sd.Persons)
	return sd
}

func first(byName map[string][]models.ExtractedField, name string) string {
	if fs := byName[name]; len(fs) > 0 {
		return fs[0].Value
	}
	return ""
}

func offset(f models.ExtractedField) int {
	if f.Location == nil {
		return -1
	}
	return f.Location.Offset
}

func distance(a, b models.ExtractedField) int {
	if a.Location == nil || b.Location == nil {
		return int(^uint(0) >> 1)
	}
	aEnd, bEnd := a.Location.Offset+a.Location.Length, b.Location.Offset+b.Location.Length
	switch {
	case aEnd <= b.Location.Offset:
		return b.Location.Offset - aEnd
	case bEnd <= a.Location.Offset:
		return a.Location.Offset - bEnd
	}
	return 0
}

// person is a PersonData under construction, anchored at the field that
// created it.
type person struct {
	data   models.PersonData
	anchor models.ExtractedField
}

func buildPersons(fields []models.ExtractedField, byName map[string][]models.ExtractedField, window int) []models.PersonData {
	var people []*person
	var roleNames []models.ExtractedField

	for _, f := range fields {
		switch {
		case strings.HasSuffix(f.FieldName, roleCedulaSuffix):
			role := strings.TrimSuffix(f.FieldName, roleCedulaSuffix)
			people = append(people, &person{data: models.PersonData{Rol: role, Cedula: f.Value}, anchor: f})
		case strings.HasSuffix(f.FieldName, roleNombreSuffix):
			roleNames = append(roleNames, f)
		}
	}

	names := roleNames
	if len(people) == 0 && len(roleNames) == 0 {
		for _, f := range byName["cedula"] {
			people = append(people, &person{data: models.PersonData{Cedula: f.Value}, anchor: f})
		}
		names = byName["nombre"]
	}
	sortByOffset := func(ps []*person) {
		sort.SliceStable(ps, func(i, j int) bool { return offset(ps[i].anchor) < offset(ps[j].anchor) })
	}
	sortByOffset(people)

	// A name belongs to the first ID of the same role that follows it.
	for _, n := range names {
		role := strings.TrimSuffix(n.FieldName, roleNombreSuffix)
		if n.FieldName == "nombre" {
			role = ""
		}
		var target *person
		for _, p := range people {
			if p.data.Rol != role || p.data.Nombre != "" || offset(p.anchor) < offset(n) {
				continue
			}
			if distance(p.anchor, n) <= window {
				target = p
				break
			}
		}
		if target == nil {
			people = append(people, &person{data: models.PersonData{Rol: role, Nombre: n.Value}, anchor: n})
			continue
		}
		target.data.Nombre = n.Value
	}
	sortByOffset(people)

	attach := func(name string, slot func(*models.PersonData) *string) {
		for _, f := range byName[name] {
			var best *person
			bestDist := window + 1
			for _, p := range people {
				if *slot(&p.data) != "" {
					continue
				}
				if d := distance(p.anchor, f); d < bestDist {
					best, bestDist = p, d
				}
			}
			if best != nil {
				*slot(&best.data) = f.Value
			}
		}
	}
	attach("pasaporte", func(p *models.PersonData) *string { return &p.Pasaporte })
	attach("nacionalidad", func(p *models.PersonData) *string { return &p.Nacionalidad })
	attach("telefono", func(p *models.PersonData) *string { return &p.Telefono })
	attach("email", func(p *models.PersonData) *string { return &p.Email })
	attach("direccion", func(p *models.PersonData) *string { return &p.Direccion })

	if len(people) == 0 {
		return nil
	}
	out := make([]models.PersonData, 0, len(people))
	for _, p := range people {
		out = append(out, p.data)
	}
	return out
}

func buildCompanies(byName map[string][]models.ExtractedField, window int) []models.CompanyData {
	var entities []models.ExtractedField
	entities = append(entities, byName[FieldRazonSocial]...)
	entities = append(entities, byName[FieldEntidad]...)
	if len(entities) == 0 {
		return nil
	}
	sort.SliceStable(entities, func(i, j int) bool { return offset(entities[i]) < offset(entities[j]) })

	seen := make(map[string]bool)
	var out []models.CompanyData
	for _, e := range entities {
		if seen[e.Value] {
			continue
		}
		seen[e.Value] = true

		c := models.CompanyData{RazonSocial: e.Value, Tipo: CompanyType(e.Value)}
		bestDist := window + 1
		for _, r := range byName["ruc"] {
			if d := distance(e, r); d < bestDist {
				c.RUC, bestDist = r.Value, d
			}
		}
		out = append(out, c)
	}
	return out
}

// companyKinds maps folded markers to the company type, checked in order.
var companyKinds = []struct {
	marker, kind string
	prefix       bool
}{
	{"S.A.S", "S.A.S.", false},
	{"LTDA", "CIA. LTDA.", false},
	{"S.A", "S.A.", false},
	{"S. A", "S.A.", false},
	{"FIDEICOMISO", "FIDEICOMISO", true},
	{"CONSORCIO", "CONSORCIO", true},
	{"FUNDACION", "FUNDACION", true},
	{"CORPORACION", "CORPORACION", true},
	{"COOPERATIVA", "COOPERATIVA", true},
}

// CompanyType derives the legal form from an entity name, or "" when none
// is recognisable.
func CompanyType(name string) string {
	folded := patterns.Fold(name)
	for _, k := range companyKinds {
		if k.prefix && strings.HasPrefix(folded, k.marker) {
			return k.kind
		}
		if !k.prefix && strings.Contains(folded, k.marker) {
			return k.kind
		}
	}
	return ""
}

func buildNotarial(byName map[string][]models.ExtractedField) *models.NotarialData {
	present := false
	for _, name := range notarialFields {
		if len(byName[name]) > 0 {
			present = true
			break
		}
	}
	if !present {
		return nil
	}
	return &models.NotarialData{
		NumeroEscritura: first(byName, FieldNumeroEscritura),
		Repertorio:      first(byName, FieldRepertorio),
		Folio:           first(byName, FieldFolio),
		Notaria:         first(byName, FieldNotaria),
		Fecha:           first(byName, "fecha"),
		Cuantia:         first(byName, FieldCuantia),
		ValorOperacion:  first(byName, FieldValorOperacion),
		FormaPago:       first(byName, FieldFormaPago),
		Articulo29:      len(byName[FieldArticulo29]) > 0,
		Objeto:          first(byName, FieldObjeto),
		Provincia:       first(byName, FieldProvincia),
		Canton:          first(byName, FieldCanton),
	}
}

func buildVehicle(byName map[string][]models.ExtractedField, persons []models.PersonData) *models.VehicleData {
	present := false
	for _, name := range vehicleFields {
		if len(byName[name]) > 0 {
			present = true
			break
		}
	}
	if !present {
		return nil
	}
	v := &models.VehicleData{
		Marca:         first(byName, FieldMarca),
		Modelo:        first(byName, FieldModelo),
		Anio:          first(byName, FieldAnio),
		Placa:         first(byName, "placa"),
		Motor:         first(byName, FieldMotor),
		Chasis:        first(byName, FieldChasis),
		Color:         first(byName, FieldColor),
		Combustible:   first(byName, FieldCombustible),
		Transmision:   first(byName, FieldTransmision),
		Precio:        first(byName, FieldPrecio),
		FormaPago:     first(byName, FieldFormaPago),
		FechaTransfer: first(byName, FieldFechaTransferencia),
	}
	for i := range persons {
		p := persons[i]
		switch {
		case p.Rol == patterns.RoleComprador && v.Comprador == nil:
			v.Comprador = &p
		case p.Rol == patterns.RoleVendedor && v.Vendedor == nil:
			v.Vendedor = &p
		}
	}
	return v
}
