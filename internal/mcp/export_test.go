package mcpserver

// TransformsFromArgs exposes the tool-argument decoder to the external
// test package.
var TransformsFromArgs = transformsFromArgs
