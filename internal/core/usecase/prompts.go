package usecase

import (
	"fmt"
	"strings"

	"github.com/betomay/papertoplan/internal/core/domain"
)

// The prompt templates encode the output schema contract the engine
// validates: field names, enumerations, classification rules, and the
// scoring calibration. The analysed text is substituted verbatim.

const projectAnalysisPrompt = `Eres un Ingeniero de Software Senior y Project Manager experto.
Tu tarea es analizar el siguiente texto crudo, que representa una idea de software o nota de proyecto.

Analiza el contenido y proporciona una respuesta JSON estructurada con los siguientes campos:
1. "title": Un título conciso y profesional para el proyecto (en Español).
2. "feasibility_score": Un entero de 0 a 100 indicando qué tan factible es el proyecto basado en tecnología actual y complejidad.
   Usa todo el rango: ideas ambiguas o muy cortas deben puntuar bajo; no repitas un valor "seguro" por defecto.
3. "technical_considerations": Una lista de desafíos técnicos clave, requisitos o decisiones de arquitectura (en Español).
4. "recommended_stack": Una lista de tecnologías recomendadas (lenguajes, frameworks, bases de datos).
5. "implementation_time": Uno de ["Short Term", "Medium Term", "Long Term"].
   - Short Term: < 1 mes (Scripts simples, herramientas básicas)
   - Medium Term: 1-3 meses (MVPs, apps web/móviles estándar)
   - Long Term: > 3 meses (Sistemas complejos, IA pesada, investigación requerida)
   REGLA DE ORO: si el texto menciona explícitamente una fase o plazo ("corto plazo", "short term", "largo plazo", "long term", "mediano plazo", "medium term"), esa mención tiene prioridad sobre tu propia clasificación.
6. "summary": Un breve resumen ejecutivo de la idea (máximo 2 oraciones, en Español).

Salida SOLAMENTE JSON válido. No incluyas formato markdown como ` + "```json ... ```" + `.

Texto Crudo a Analizar:
%s`

const clinicalAnalysisPrompt = `Eres un médico experto en documentación clínica.
Tu tarea es estructurar el siguiente texto crudo de una consulta médica en formato SOAP.

Proporciona una respuesta JSON estructurada con los siguientes campos:
1. "summary": Resumen ejecutivo de la consulta (máximo 2 oraciones, en Español).
2. "confidence_score": Un entero de 0 a 100 indicando qué tan completa y confiable es la información del texto.
   Texto ambiguo o muy corto debe puntuar bajo; no repitas un valor "seguro" por defecto.
3. "subjective": {"chief_complaint": string, "symptoms": [string], "history": string}
4. "objective": {"vitals": {objeto de signos vitales}, "findings": [string]}
5. "assessment": {"diagnoses": [{"description": string, "cie10_code": string}]}
6. "plan": {"medications": [{"drug_name": string, "dose": string, "frequency": string, "duration": string, "instructions": string}],
   "follow_up": string, "recommendations": [string], "referrals": [string], "studies": [string]}
7. "lab_values": [{"name": string, "value": string, "unit": string, "reference_range": string, "is_abnormal": boolean}]

Usa listas vacías cuando el texto no mencione la sección. No inventes datos clínicos.
Salida SOLAMENTE JSON válido. No incluyas formato markdown como ` + "```json ... ```" + `.

Texto Crudo a Analizar:
%s`

const documentTypePrompt = `Clasifica el siguiente texto de un documento médico en exactamente uno de estos tipos:
"consultation" (nota de consulta), "prescription" (receta), "lab_result" (resultado de laboratorio), "referral" (referencia a especialista).

Responde SOLAMENTE un objeto JSON: {"document_type": "<tipo>"}

Texto:
%s`

func buildAnalysisPrompt(mode domain.AnalysisMode, text string) string {
	if mode == domain.ModeClinical {
		return fmt.Sprintf(clinicalAnalysisPrompt, text)
	}
	return fmt.Sprintf(projectAnalysisPrompt, text)
}

func buildDocumentTypePrompt(text string) string {
	const maxSnippet = 2000
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	return fmt.Sprintf(documentTypePrompt, snippet)
}

// stripCodeFences removes a surrounding markdown code fence the model may
// emit despite instructions, then slices to the outermost JSON object.
func stripCodeFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if idx := strings.Index(cleaned, "```json"); idx >= 0 {
		cleaned = cleaned[idx+len("```json"):]
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	} else if idx := strings.Index(cleaned, "```"); idx >= 0 {
		cleaned = cleaned[idx+len("```"):]
		if end := strings.Index(cleaned, "```"); end >= 0 {
			cleaned = cleaned[:end]
		}
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}
	return strings.TrimSpace(cleaned)
}
