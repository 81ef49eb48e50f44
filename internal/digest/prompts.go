package digest

import (
	"fmt"
	"strings"
)

const storyShape = `{"bankingStories":[{"title":"...","executiveSummary":"...","businessImpact":"...","sourceUrl":"https://..."}],"aiStories":[...]}`

var newsletterRules = []string{
	"You read an AI industry newsletter on behalf of banking executives and pull out the stories they need.",
	"From the newsletter text, choose:",
	"- bankingStories: up to 3 stories that concern AI or machine learning AND have an explicit link to banking, fintech, payments, fraud, compliance, lending or financial regulation. Name the institution, regulator or product involved.",
	"- aiStories: up to 3 of the most strategically important general AI developments of the day.",
	"Rules:",
	"- Ignore anything sourced from paywalled outlets such as the FT, WSJ, Bloomberg, The Information, American Banker, The Economist or Barron's.",
	"- Ignore social media chatter, developer tooling trivia and consumer entertainment AI.",
	"- Each story needs a sharp title stating the insight, a 2-3 sentence executiveSummary built on concrete facts, and a businessImpact sentence with a specific action for bank leaders.",
	"- Use the newsletter URL given below as sourceUrl for every story. Never invent other URLs.",
	"Answer with JSON only, shaped exactly like " + storyShape,
}

// NewsletterPrompt is the system instruction for the newsletter pass.
func NewsletterPrompt(issueURL string) string {
	return strings.Join(newsletterRules, "\n") + "\nNewsletter URL (sourceUrl for all stories): " + issueURL
}

// NewsletterPayload wraps the newsletter body for the user message.
func NewsletterPayload(text string) string {
	return "Newsletter content:\n\n" + text
}

const candidatesPrompt = `You are a senior analyst writing a daily AI intelligence brief for C-suite banking executives. Stories from the lead newsletter are already in the brief. Find ADDITIONAL coverage among the candidate items supplied as JSON.

WHAT TO PICK
- bankingStories: AI developments with a direct, stated connection to banking, fintech or financial services. Skip tenuous links.
- aiStories: broad AI developments important enough that a bank executive should hear about them today.
Each candidate carries a "pool" hint ("banking" or "ai") from keyword screening; treat it as a hint, not a rule.

REJECT
- Paywalled articles without substantive content
- Social media, entertainment and lifestyle pieces
- Repeats of what the lead newsletter already covers
- Opinion without new facts or data

STYLE
Readers skim this at 7am between meetings.
- executiveSummary: at most 2-3 sentences on what happened and why it matters. Plain words, no hedging.
- businessImpact: 1-2 sentences with a concrete implication for a bank or fintech. No generic "this could affect the industry".
- sourceUrl: the url of the candidate the story is based on.

OUTPUT
Strict JSON only, no markdown and no commentary, shaped as:
` + storyShape

// CandidatesPrompt is the system instruction for the supplementary pass. It
// tells the model how many slots of each section are still open.
func CandidatesPrompt(neededBanking, neededAI int) string {
	return candidatesPrompt + fmt.Sprintf("\n\nOpen slots: %d bankingStories, %d aiStories.", neededBanking, neededAI)
}
