package processors

import (
	"fmt"
	"strings"
)

// Answer types the question framer may return.
const (
	AnswerShort      = "short"
	AnswerDetailed   = "detailed"
	AnswerList       = "list"
	AnswerYesNo      = "yes/no"
	AnswerDefinition = "definition"
	AnswerSteps      = "step-by-step"
)

var answerTypes = map[string]bool{
	AnswerShort: true, AnswerDetailed: true, AnswerList: true,
	AnswerYesNo: true, AnswerDefinition: true, AnswerSteps: true,
}

func hinglishPrompt(query string) string {
	return fmt.Sprintf(`Rewrite the English question below as natural spoken Hinglish in Devanagari script.
Technical terms stay English words but are spelled phonetically in Devanagari.
Return only the rewritten question.

Example: "what is cyborg?" -> "साइबॉर्ग क्या होता है?"

Question: %s`, query)
}

func framePrompt(question string) string {
	return fmt.Sprintf(`Analyze the question and return exactly one line in the form:
refined_question | answer_type | history_needed

refined_question: the question rewritten for clarity, kept short.

answer_type, one of:
- short: one-line fact ("who is", "how many", "what year")
- detailed: paragraph explanation ("explain how", "why does")
- list: several items ("what are the types", "give examples")
- yes/no: binary answer with a short reason ("is it", "can we")
- definition: concise definition ("what is", "define")
- step-by-step: ordered process ("how to", "steps for")

history_needed is "yes" when the question leans on earlier conversation:
pronouns without a subject (it, that, this, they, he, she, its, their),
continuations (also, too, what else, and what about), requests for more
(elaborate, tell me more, explain further) or bare follow-ups (why? how?).
It is "no" for self-contained questions, new topics and greetings.

Examples:
What is machine learning | definition | no
How does it work internally | detailed | yes
What are its main features | list | yes

Question:
%s`, question)
}

func rewritePrompt(question, summary string) string {
	return fmt.Sprintf(`Rewrite the question so it can be understood without the conversation.
Use the context summary to resolve what pronouns and references point to.
Keep the meaning. Return only the rewritten question, no answer and no explanation.

Example: "Who was he?" with a summary about Albert Einstein -> "Who was Albert Einstein?"

Question: %s
Context summary: %s`, question, summary)
}

func answerPrompt(question, answerType, data string) string {
	return fmt.Sprintf(`You explain video content to a user in a friendly, conversational way.

Question: %s
Answer type: %s
Context from the video: %s

Match the answer type:
- short: one line
- detailed: a full paragraph with context
- list: bullet or numbered points
- yes/no: yes or no plus one sentence
- definition: a single clear definition
- step-by-step: numbered steps

Ground the answer in the context, rephrase rather than copy it, and stay accurate.`, question, answerType, data)
}

func englishPrompt(answer string) string {
	return fmt.Sprintf(`Translate the following answer into English. It may be in English, Hindi or a mix.
Return only the English text.

%s`, answer)
}

func summaryPrompt(turns []string) string {
	return fmt.Sprintf(`Below are the most recent user and assistant messages, oldest first.
Write one short paragraph that captures what the conversation is about:
the subject, names and events mentioned, and what the user is trying to find out.
Weight the latest messages most. Do not quote sentences verbatim.
The summary will be used to resolve words like "he", "they", "it" or "this" in later questions.

%s`, strings.Join(turns, "\n"))
}

func botPrompt(query string) string {
	return fmt.Sprintf(`You are TubeChat, an assistant that answers questions about YouTube videos
by reading their transcripts. You are talking to the user directly.

User message: %s

Reply briefly in character. If the message is unrelated, say who you are.
Always end by asking the user to upload a valid YouTube URL so you can analyze it.`, query)
}
