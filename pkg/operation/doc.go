/*
Package operation runs the formatter against a live document.

	+------------+     +-----------+
	|  gdocs     |     |  rules    |
	| (document) |     |  (trie)   |
	+-----+------+     +-----+-----+
	      |   fetched together |
	      +---------+----------+
	                |
	         +------+------+
	         |   format    |
	         | (changes)   |
	         +------+------+
	                |
	         +------+------+
	         |    diff     |
	         | (dedupe,map)|
	         +------+------+
	                |
	         +------+------+
	         | batchUpdate |
	         +-------------+

🔄 Flow:
1. Preview fetches the document and the rule trie in parallel
2. Every paragraph of the body and the footnotes is normalized
3. Changes are deduplicated
4. Apply maps them to replaceAllText requests and submits one batch; a
   failed batch is retried once with the requests in reverse order

🔍 Example:

	svc := operation.New(rules.NewCache(src, 5*time.Minute))
	preview, err := svc.Preview(ctx, client, docID)
	result, err := svc.Apply(ctx, client, docID, preview.Changes)
*/
package operation
