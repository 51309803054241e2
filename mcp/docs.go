package mcp

// docsUsage is served as mongo://docs/usage.
const docsUsage = `# MongoDB MCP Gateway

The gateway holds at most one open connection. Call ` + "`connect`" + ` first; every data tool
then works on the database chosen there until ` + "`disconnect`" + ` or the next ` + "`connect`" + `.

## Tools

| tool | arguments | result data |
|------|-----------|-------------|
| ` + "`connect`" + ` | ` + "`connection_string`, `database_name`" + ` | ` + "`database`" + ` |
| ` + "`disconnect`" + ` | none | ` + "`wasConnected`" + ` |
| ` + "`create`" + ` | ` + "`collection_name`, `document`" + ` | ` + "`collection`, `insertedId`, `fieldCount`" + ` |
| ` + "`read`" + ` | ` + "`collection_name`, `filter`?, `limit`?, `skip`?" + ` | ` + "`collection`, `count`, `documents`" + ` |
| ` + "`update`" + ` | ` + "`collection_name`, `filter`, `update`, `upsert`?" + ` | ` + "`collection`, `matched`, `modified`, `upsertedId`?" + ` |
| ` + "`delete`" + ` | ` + "`collection_name`, `filter`" + ` | ` + "`collection`, `deleted`" + ` |

` + "`document`, `filter` and `update`" + ` are JSON objects. They may also be passed as a string
holding a JSON object.

## Examples

Connect:

` + "```json" + `
{"connection_string": "mongodb://localhost:27017", "database_name": "shop"}
` + "```" + `

Find the ten most recent open orders after skipping the first twenty:

` + "```json" + `
{"collection_name": "orders", "filter": {"status": "open"}, "skip": 20, "limit": 10}
` + "```" + `

Select by identifier. Identifiers come back as 24 character hex strings; wrap them in
` + "`$oid`" + ` to match the stored ObjectId:

` + "```json" + `
{"collection_name": "orders", "filter": {"_id": {"$oid": "65f1c0ffee0000000000abcd"}}}
` + "```" + `

Update with operators. Replacement documents are rejected:

` + "```json" + `
{"collection_name": "orders", "filter": {"status": "open"}, "update": {"$set": {"status": "shipped"}, "$inc": {"revision": 1}}}
` + "```" + `

Delete requires a filter. ` + "`{}`" + ` deletes every document in the collection.

## Results

Every call returns a JSON object:

` + "```json" + `
{"status": "success", "data": {...}, "message": "read 2 document(s) from orders"}
{"status": "error", "message": "no active connection; call connect first", "errorKind": "NotConnectedError"}
` + "```" + `

Error kinds:

- ` + "`ValidationError`" + `: an argument is missing or malformed. Nothing was sent to the database.
- ` + "`NotConnectedError`" + `: no connection is open. Call ` + "`connect`" + `.
- ` + "`ConnectionError`" + `: ` + "`connect`" + ` failed. Any previous connection is still open.
- ` + "`StoreError`" + `: the database rejected or failed the operation. ` + "`cause`" + ` carries the driver's
  message. When the connection itself was lost the session is closed and the next call
  reports ` + "`NotConnectedError`" + `.

## Local testing

` + "`memory://<name>`" + ` connection strings open a process-local store with the same tool
behaviour, supporting the common query and update operators.
`
