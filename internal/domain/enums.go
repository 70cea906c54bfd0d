package domain

// PIIType is the category of a detected PII span.
type PIIType string

const (
	PIITypeSSN            PIIType = "SSN"
	PIITypePhone          PIIType = "PHONE"
	PIITypeEmail          PIIType = "EMAIL"
	PIITypeCreditCard     PIIType = "CREDIT_CARD"
	PIITypeDriversLicense PIIType = "DRIVERS_LICENSE"
	PIITypePassport       PIIType = "PASSPORT"
	PIITypeBankAccount    PIIType = "BANK_ACCOUNT"
	PIITypeIPAddress      PIIType = "IP_ADDRESS"
	PIITypeDateOfBirth    PIIType = "DATE_OF_BIRTH"
	PIITypeMedicalRecord  PIIType = "MEDICAL_RECORD"
	PIITypeCaseNumber     PIIType = "CASE_NUMBER"
	PIITypeName           PIIType = "NAME"
	PIITypeAddress        PIIType = "ADDRESS"
)

// KnownPIITypes lists every category the pipeline has a token and weight for.
var KnownPIITypes = []PIIType{
	PIITypeSSN,
	PIITypePhone,
	PIITypeEmail,
	PIITypeCreditCard,
	PIITypeDriversLicense,
	PIITypePassport,
	PIITypeBankAccount,
	PIITypeIPAddress,
	PIITypeDateOfBirth,
	PIITypeMedicalRecord,
	PIITypeCaseNumber,
	PIITypeName,
	PIITypeAddress,
}

// IsKnown reports whether t is one of KnownPIITypes.
func (t PIIType) IsKnown() bool {
	for _, k := range KnownPIITypes {
		if t == k {
			return true
		}
	}
	return false
}

// EntitySource identifies which detector produced an entity.
type EntitySource string

const (
	SourceRegex EntitySource = "regex"
	SourceModel EntitySource = "model"
)

// ExtractionMethod is the strategy used to turn a document into text.
type ExtractionMethod string

const (
	ExtractionPDF  ExtractionMethod = "pdf"
	ExtractionOCR  ExtractionMethod = "ocr"
	ExtractionWord ExtractionMethod = "word"
	ExtractionText ExtractionMethod = "text"
)

// AuditStatus is the outcome recorded on a RedactionAudit.
type AuditStatus string

const (
	AuditStatusPending      AuditStatus = "PENDING"
	AuditStatusCompleted    AuditStatus = "COMPLETED"
	AuditStatusManualReview AuditStatus = "MANUAL_REVIEW"
	AuditStatusFailed       AuditStatus = "FAILED"
)

// MIME types the extractor routes explicitly.
const (
	MIMETypePDF      = "application/pdf"
	MIMETypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMETypeMSWord   = "application/msword"
	MIMETypePNG      = "image/png"
	MIMETypeJPEG     = "image/jpeg"
	MIMETypePlain    = "text/plain"
	MIMETypeOctetStr = "application/octet-stream"
)

// ImageExtensions maps image file extensions (without dot) to their MIME type.
var ImageExtensions = map[string]string{
	"png":  MIMETypePNG,
	"jpg":  MIMETypeJPEG,
	"jpeg": MIMETypeJPEG,
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
}
