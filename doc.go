/*Package granary is a small MapReduce engine for batch jobs over line-oriented
files, such as CSV datasets.

A job is defined by a Mapper and a Reducer. The driver splits input files into
byte ranges, runs mappers over them concurrently, partitions emitted key-value
pairs into intermediate shuffle bins, and runs one reducer per bin. Reducer
output is written as tab-separated part files in the job's working location.

Input and output locations may be local paths or s3:// URIs; the filesystem
backend is inferred from the path.

Granary is best suited for data-intensive but computationally inexpensive
tasks, such as ETL jobs and report generation.
*/
package granary
