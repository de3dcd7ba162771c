package nl2sql

import (
	"fmt"

	"github.com/csvask/csvask/internal/query"
)

const queryPromptTemplate = `You are a DuckDB expert. Given a user question, first create a syntactically correct DuckDB SQL query to run, then look at the results of the query and return the answer.

Unless the user specifies in the question a specific number of examples to obtain, do not limit your query.

You can only query the table named '%s'. This table represents the data from the user's file.

%s

Pay attention to use only the column names you can see in the table description. Do not query for columns that do not exist.

Write the SQL query that answers the following question:
Question: %s`

const answerPromptTemplate = `Given the user's question, the corresponding SQL query, and the SQL result, formulate a final natural language answer. If the SQL Status is error or the SQL Result contains an error message, explain the error to the user in a helpful way.

Question: %s
SQL Query: %s
SQL Status: %s
SQL Result: %s
Answer:`

// QueryPrompt renders the query-generation prompt for the bound relation.
func QueryPrompt(tableInfo, question string) string {
	return fmt.Sprintf(queryPromptTemplate, query.Relation, tableInfo, question)
}

// AnswerPrompt renders the answer-composition prompt. The status line is
// derived from the outcome variant, so the model does not have to infer it
// from the result text alone.
func AnswerPrompt(question, sqlText string, outcome query.Outcome) string {
	status := "ok"
	if outcome.Failed() {
		status = "error"
	}
	return fmt.Sprintf(answerPromptTemplate, question, sqlText, status, outcome.String())
}
