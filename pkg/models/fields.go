package models

// FieldType is the semantic kind of an extracted field.
type FieldType string

const (
	FieldCedula         FieldType = "cedula"
	FieldRUC            FieldType = "ruc"
	FieldPasaporte      FieldType = "pasaporte"
	FieldPlaca          FieldType = "placa"
	FieldTelefono       FieldType = "telefono"
	FieldEmail          FieldType = "email"
	FieldFecha          FieldType = "fecha"
	FieldMonto          FieldType = "monto"
	FieldNombre         FieldType = "nombre"
	FieldMarca          FieldType = "marca"
	FieldModelo         FieldType = "modelo"
	FieldAnio           FieldType = "anio"
	FieldMotor          FieldType = "motor"
	FieldChasis         FieldType = "chasis"
	FieldColor          FieldType = "color"
	FieldCombustible    FieldType = "combustible"
	FieldTransmision    FieldType = "transmision"
	FieldEntidadLegal   FieldType = "entidad_legal"
	FieldUbicacion      FieldType = "ubicacion"
	FieldDireccion      FieldType = "direccion"
	FieldNacionalidad   FieldType = "nacionalidad"
	FieldNumeroNotarial FieldType = "numero_notarial"
	FieldArticulo29     FieldType = "articulo_29"
	FieldFormaPago      FieldType = "forma_pago"
	FieldTexto          FieldType = "texto"
)

// ValidationStatus records the outcome of a field's validator.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
	ValidationUnknown ValidationStatus = "unknown"
)

// Location is the position of a field in its source text or image.
type Location struct {
	Offset int   `json:"offset"`
	Length int   `json:"length"`
	Page   int   `json:"page,omitempty"`
	BBox   *BBox `json:"bbox,omitempty"`
}

// BBox is a pixel rectangle.
type BBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// ExtractedField is one candidate value found in a document.
type ExtractedField struct {
	FieldName        string           `json:"fieldName"`
	Value            string           `json:"value"`
	Confidence       float64          `json:"confidence"`
	Type             FieldType        `json:"type"`
	ValidationStatus ValidationStatus `json:"validationStatus"`
	Location         *Location        `json:"location,omitempty"`
}
