/*
Package iter8 binds Google Sheets worksheets to in-memory dataframes for collaborative editing by
automated agents (e.g. LLMs) and people working on the same sheet.

A worksheet is read into a dataframe snapshot and edits are made to a copy of the snapshot inside an
update. When the update is committed only the cells that actually changed are written back, in a single
batch update, so edits made directly in the sheet in the meantime are preserved. Optionally the worksheet
is re-read before writing and the update is refused if any of the cells being written were changed by
someone else.

The datasheet package is the library. The iter8 command line application supports the following commands:

  - get, to download a Google Sheets worksheet as a TSV file
  - put, to store a TSV file to a Google Sheets worksheet
  - diff, to list the cells an edited TSV file would change in a worksheet
  - update, to write the cells changed in an edited TSV file back to a worksheet
  - version, to display the current version
*/
package iter8
