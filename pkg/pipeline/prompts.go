package pipeline

const analysisSystemPrompt = `You are a query analysis assistant that helps identify tariff-related information in user questions.
Your task is to:
1. Identify if the question is about a specific tariff (e.g. anchorage dues, port charges, pilotage, wharfage)
2. Extract the relevant tariff name if present
3. Construct a concise search query for finding the answer in tariff documents

Respond in JSON format with the following structure:
{
  "is_tariff_related": boolean,
  "tariff_name": string or null,
  "search_query": string
}

Return ONLY the JSON object, no markdown fences or other text.`

const answerSystemPrompt = `You are a helpful assistant that answers questions based on the provided context. ` +
	`If you cannot answer based on the context, say so. ` +
	`Always provide a response, even if it's to say you don't have enough information.`

const answerUserPrompt = "Context: %s\n\nQuestion: %s"

// InsufficientInfoMessage is the answer when the model returns empty content.
const InsufficientInfoMessage = "I apologize, but I couldn't generate a response based on the available context. " +
	"Please try rephrasing your question or provide more specific details."

// ErrorFallbackMessage is the answer when the model call or its response fails.
const ErrorFallbackMessage = "I encountered an error while processing your question. " +
	"Please try again or rephrase your question."
