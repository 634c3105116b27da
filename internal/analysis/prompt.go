package analysis

import "fmt"

const systemPrompt = `You are an AI assistant that creates effective call scripts for a sales agent persona named %[1]s.
Use your knowledge of the website domain provided, and any page text supplied, to create a natural-sounding call script for %[1]s.
The script should be friendly, professional and tailored to the specific business being called.
The goal of the call is to see if the business is interested in the services offered by the person %[1]s is calling on behalf of.
Use the variable {{name}} as a placeholder for the person %[1]s is calling for.
Use the variable {{businessName}} as a placeholder for the company being called.`

const userPrompt = `I need a call script for our agent, %[1]s, to call a business with the website: %[2]s (domain: %[3]s).

Please:
1. Identify the business name, industry, and key services or products.
2. Write a brief summary of what the business does.
3. Write a natural-sounding call script for %[1]s. It must start with "Hello, my name is %[1]s, and I'm calling on behalf of {{name}}..." and be directed at {{businessName}}.
4. Include 2-3 relevant questions for %[1]s to ask during the call to gauge interest.

Respond with JSON in exactly this shape:
{
  "businessName": "Name of the business",
  "industry": "Industry category",
  "services": ["Service 1", "Service 2"],
  "summary": "Brief summary of the business",
  "callScript": "Complete call script using {{name}} and {{businessName}}.",
  "questions": ["Question 1", "Question 2"]
}`

func buildPrompts(persona, websiteURL, domain, pageText string) (string, string) {
	user := fmt.Sprintf(userPrompt, persona, websiteURL, domain)
	if pageText != "" {
		user += "\n\nText from the website's home page:\n" + pageText
	}
	return fmt.Sprintf(systemPrompt, persona), user
}
